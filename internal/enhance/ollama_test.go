package enhance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		client *Ollama
		draft  *extraction.Draft
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client, err = NewOllama(server.URL(), "llama3.1")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		draft, err = client.Enhance(context.Background(), extraction.EnhanceRequest{
			RawText: "CORNER MARKET\nTOTAL 9.17",
			Draft:   extraction.Empty("CORNER MARKET\nTOTAL 9.17"),
		})
	})

	When("the model answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, _ := io.ReadAll(r.Body)
					var req ollamaChatRequest
					Expect(json.Unmarshal(body, &req)).To(Succeed())
					Expect(req.Model).To(Equal("llama3.1"))
					Expect(req.Format).To(Equal("json"))
					Expect(req.Stream).To(BeFalse())
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Content).To(ContainSubstring("TOTAL 9.17"))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"merchant": "Corner Market", "total": 9.17}`},
					Done:    true,
				}),
			))
		})

		It("returns the parsed draft", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*draft.Merchant).To(Equal("Corner Market"))
			Expect(draft.Total.StringFixed(2)).To(Equal("9.17"))
		})
	})

	When("the server fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the answer is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this receipt."},
				Done:    true,
			}))
		})

		It("returns a parse error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing enhancement")))
		})
	})
})

var _ = Describe("Ollama cancellation", func() {
	It("stops when the context ends", func() {
		server := ghttp.NewUnstartedServer()
		server.AllowUnhandledRequests = true
		server.RouteToHandler(http.MethodPost, "/api/chat", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		server.Start()
		defer server.Close()

		client, err := NewOllama(server.URL(), "")
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = client.Enhance(ctx, extraction.EnhanceRequest{RawText: "x", Draft: extraction.Empty("x")})
		Expect(err).To(MatchError(ContainSubstring("calling ollama API")))
	})
})
