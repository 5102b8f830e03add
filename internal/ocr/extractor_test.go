package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-extractor/internal/extraction"
)

type mockRecognizer struct {
	input       extraction.Input
	err         error
	calls       int
	contentType string
	closed      bool
}

func (m *mockRecognizer) Recognize(ctx context.Context, data []byte, contentType string) (extraction.Input, error) {
	m.calls++
	m.contentType = contentType
	return m.input, m.err
}

func (m *mockRecognizer) Close() error {
	m.closed = true
	return nil
}

var _ = Describe("Extractor", func() {
	var (
		vision      *mockRecognizer
		extractor   *Extractor
		data        []byte
		contentType string
		input       extraction.Input
		err         error
	)

	BeforeEach(func() {
		vision = &mockRecognizer{input: extraction.Input{Text: "TOTAL 4.50", Confidence: 0.6, Success: true}}
		extractor = NewExtractor(vision, nil)
		data = testPNG()
		contentType = "image/png"
	})

	JustBeforeEach(func() {
		input, err = extractor.Recognize(context.Background(), data, contentType)
	})

	When("given an image", func() {
		It("sends it to the vision recognizer", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(vision.calls).To(Equal(1))
			Expect(input.Text).To(Equal("TOTAL 4.50"))
		})
	})

	When("given a PDF without a readable text layer", func() {
		BeforeEach(func() {
			data = []byte("%PDF-1.4 garbage")
			contentType = ""
		})

		It("falls back to the vision recognizer", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(vision.calls).To(Equal(1))
		})
	})

	When("the vision recognizer fails", func() {
		BeforeEach(func() {
			vision.err = errors.New("quota exceeded")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError("quota exceeded"))
		})
	})

	When("no vision recognizer is configured", func() {
		BeforeEach(func() {
			extractor = NewExtractor(nil, nil)
		})

		It("reports no usable signal", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(input.Success).To(BeFalse())
		})

		It("closes cleanly", func() {
			Expect(extractor.Close()).To(Succeed())
		})
	})

	It("closes the vision recognizer", func() {
		Expect(extractor.Close()).To(Succeed())
		Expect(vision.closed).To(BeTrue())
	})
})

var _ = Describe("Ollama", func() {
	var server *ghttp.Server

	BeforeEach(func() {
		server = ghttp.NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the image and returns the transcription", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			func(w http.ResponseWriter, r *http.Request) {
				var req ollamaChatRequest
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Model).To(Equal("llava"))
				Expect(req.Messages).To(HaveLen(1))
				Expect(req.Messages[0].Images).To(HaveLen(1))
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "CORNER MARKET\nTOTAL $9.17"},
				Done:    true,
			}),
		))

		client, err := NewOllama(server.URL(), "")
		Expect(err).NotTo(HaveOccurred())
		input, err := client.Recognize(context.Background(), testJPEG(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(input.Success).To(BeTrue())
		Expect(input.Text).To(Equal("CORNER MARKET\nTOTAL $9.17"))
		Expect(input.Confidence).To(BeNumerically(">", 0.2))
	})

	It("returns API errors", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "model not found"))

		client, _ := NewOllama(server.URL(), "missing")
		_, err := client.Recognize(context.Background(), testPNG(), "image/png")
		Expect(err).To(MatchError(ContainSubstring("status 404")))
	})
})
