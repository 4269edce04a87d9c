package httpserver_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lookout-hq/lookout/internal/httpserver"
)

var _ = Describe("Server", func() {
	var handler http.Handler

	BeforeEach(func() {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	Describe("New", func() {
		It("should accept a host:port address", func() {
			srv, err := httpserver.New("localhost:8080", handler)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("should accept a bare port", func() {
			srv, err := httpserver.New(":8080", handler)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("should reject an address without a port", func() {
			_, err := httpserver.New("localhost", handler)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an empty address", func() {
			_, err := httpserver.New("", handler)
			Expect(err).To(HaveOccurred())
		})

		It("should reject garbage hosts", func() {
			_, err := httpserver.New("not a host:8080", handler)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Start and Shutdown", func() {
		It("should serve requests until shut down", func() {
			srv, err := httpserver.New("127.0.0.1:18321", handler)
			Expect(err).NotTo(HaveOccurred())

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			Eventually(func() error {
				res, err := http.Get("http://127.0.0.1:18321/")
				if err != nil {
					return err
				}
				res.Body.Close()
				return nil
			}, time.Second).Should(Succeed())

			Expect(srv.Shutdown(context.Background())).To(Succeed())
			Eventually(errCh, time.Second).Should(Receive(BeNil()))
		})
	})
})
