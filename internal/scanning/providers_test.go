package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func testPNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)))).To(Succeed())
	return buf.Bytes()
}

// captureJSON decodes the request body into target
func captureJSON(target any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		body, err := io.ReadAll(r.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, target)).To(Succeed())
	}
}

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		ollama   *Ollama
		pngData  []byte
		captured ollamaChatRequest
		resp     *ModelResponse
		err      error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		pngData = testPNG()
		captured = ollamaChatRequest{}
		ollama, err = NewOllama(server.URL(), "llava", NewFetcher())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		resp, err = ollama.Generate(context.Background(), ModelRequest{
			ImageURL: server.URL() + "/photo.png",
			System:   "system text",
			User:     "Item condition: GOOD",
		})
	})

	When("the model answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/photo.png"),
					ghttp.RespondWith(http.StatusOK, pngData, http.Header{"Content-Type": []string{"image/png"}}),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/api/chat"),
					captureJSON(&captured),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"message":     map[string]any{"role": "assistant", "content": drillJSON},
						"done":        true,
						"done_reason": "stop",
					}),
				),
			)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns a completed response", func() {
			Expect(resp.Status).To(Equal(StatusCompleted))
			Expect(resp.Text).To(Equal(drillJSON))
		})

		It("sends the system and user prompts", func() {
			Expect(captured.Model).To(Equal("llava"))
			Expect(captured.Format).To(Equal("json"))
			Expect(captured.Messages).To(HaveLen(2))
			Expect(captured.Messages[0].Content).To(Equal("system text"))
			Expect(captured.Messages[1].Content).To(Equal("Item condition: GOOD"))
		})

		It("attaches the downloaded image", func() {
			Expect(captured.Messages[1].Images).To(HaveLen(1))
			decoded, decodeErr := base64.StdEncoding.DecodeString(captured.Messages[1].Images[0])
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(pngData))
		})
	})

	When("the model stops early", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, pngData, http.Header{"Content-Type": []string{"image/png"}}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message":     map[string]any{"role": "assistant", "content": `{"identifiedName": "dr`},
					"done":        true,
					"done_reason": "length",
				}),
			)
		})

		It("returns an incomplete response with the reason", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(StatusIncomplete))
			Expect(resp.Reason).To(Equal("length"))
		})
	})

	When("the API returns an error", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, pngData, http.Header{"Content-Type": []string{"image/png"}}),
				ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"),
			)
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the image cannot be downloaded", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "gone"))
		})

		It("returns the error without calling the model", func() {
			Expect(err).To(MatchError(ContainSubstring("status 404")))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})
})

var _ = Describe("OpenAI", func() {
	var (
		server   *ghttp.Server
		openai   *OpenAI
		captured map[string]any
		resp     *ModelResponse
		err      error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		captured = map[string]any{}
		openai, err = NewOpenAI(server.URL(), "test-key", "gpt-4o")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		resp, err = openai.Generate(context.Background(), ModelRequest{
			ImageURL: "https://x/1.jpg",
			System:   "system text",
			User:     "Item condition: GOOD",
		})
	})

	When("the model answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer test-key"),
				captureJSON(&captured),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"choices": []any{
						map[string]any{
							"message":       map[string]any{"role": "assistant", "content": drillJSON},
							"finish_reason": "stop",
						},
					},
				}),
			))
		})

		It("returns a completed response", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(StatusCompleted))
			Expect(resp.Text).To(Equal(drillJSON))
		})

		It("passes the image by URL", func() {
			messages := captured["messages"].([]any)
			Expect(messages).To(HaveLen(2))
			user := messages[1].(map[string]any)
			parts := user["content"].([]any)
			imagePart := parts[0].(map[string]any)["image_url"].(map[string]any)
			Expect(imagePart["url"]).To(Equal("https://x/1.jpg"))
			Expect(parts[1].(map[string]any)["text"]).To(Equal("Item condition: GOOD"))
		})

		It("asks for a JSON object", func() {
			Expect(captured["response_format"]).To(Equal(map[string]any{"type": "json_object"}))
		})
	})

	When("the answer was cut off", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"choices": []any{
					map[string]any{
						"message":       map[string]any{"content": `{"identifiedName": `},
						"finish_reason": "length",
					},
				},
			}))
		})

		It("returns an incomplete response", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(StatusIncomplete))
			Expect(resp.Reason).To(Equal("length"))
		})
	})

	When("there are no choices", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"choices": []any{}}))
		})

		It("returns an incomplete response", func() {
			Expect(resp.Status).To(Equal(StatusIncomplete))
		})
	})

	When("the API rejects the request", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, `{"error": "rate limited"}`))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 429")))
		})
	})
})

var _ = Describe("NewOpenAI", func() {
	It("requires an API key", func() {
		_, err := NewOpenAI("", "", "")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewGemini", func() {
	It("requires an API key", func() {
		_, err := NewGemini("", "", nil)
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})
})

var _ = Describe("Gemini", func() {
	var gemini *Gemini

	BeforeEach(func() {
		var err error
		gemini, err = NewGemini("test-key", "", nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(gemini.Close)
	})

	Describe("newModel", func() {
		It("sends the system prompt as the system instruction", func() {
			model := gemini.newModel(SystemPrompt)
			Expect(model.SystemInstruction).NotTo(BeNil())
			Expect(model.SystemInstruction.Parts).To(Equal([]genai.Part{genai.Text(SystemPrompt)}))
		})

		It("asks for a JSON response", func() {
			Expect(gemini.newModel(SystemPrompt).ResponseMIMEType).To(Equal("application/json"))
		})
	})

	Describe("geminiParts", func() {
		It("sends only the image and the user prompt as content", func() {
			parts := geminiParts([]byte("png"), "user prompt")
			Expect(parts).To(HaveLen(2))
			Expect(parts[0]).To(Equal(genai.ImageData("png", []byte("png"))))
			Expect(parts[1]).To(Equal(genai.Text("user prompt")))
		})
	})
})
