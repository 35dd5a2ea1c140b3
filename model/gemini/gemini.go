// Package gemini provides an implementation of model.Model using the Google
// Gemini API (including streaming + function calling). It adapts CoderLang's
// normalized Request/Response structures into the genai SDK's content format
// and back.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Options configure the Gemini model adapter.
type Options struct {
	Model             string
	Temperature       float32
	MaxOutputTokens   int32
	RequestsPerMinute int // 0 disables client-side rate limiting
	BlockNone         bool
}

// Model wraps the Gemini generate content API behind the generic model.Model interface.
type Model struct {
	client  *genai.Client
	limiter *rate.Limiter
	opts    Options
}

// NewModel creates a new Gemini model. The API key is read from the
// GEMINI_API_KEY / GOOGLE_API_KEY environment by the underlying client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return NewModelFromClient(client, optFns...), nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:           "gemini-2.5-flash",
		Temperature:     0.7,
		MaxOutputTokens: 8192,
		BlockNone:       true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.RequestsPerMinute)
	}
	return &Model{client: client, limiter: limiter, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				errCh <- err
				return
			}
		}
		contents := buildContents(req)
		config := m.buildConfig(req)
		if req.Stream {
			m.handleStreaming(ctx, contents, config, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, contents, config, out, errCh)
	}()
	return out, errCh
}

// buildContents converts normalized contents into genai contents. System role
// content is handled separately via SystemInstruction.
func buildContents(req model.Request) []*genai.Content {
	var contents []*genai.Content
	for _, c := range req.Contents {
		if c.Role == "system" {
			continue
		}
		role := genai.RoleUser
		if c.Role == "assistant" {
			role = genai.RoleModel
		}
		var parts []*genai.Part
		for _, p := range c.Parts {
			switch v := p.(type) {
			case core.TextPart:
				if v.Text != "" {
					parts = append(parts, genai.NewPartFromText(v.Text))
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if v.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(v.FunctionCall.Arguments), &args)
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   v.FunctionCall.ID,
					Name: v.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				resp := map[string]any{}
				if s, ok := v.FunctionResponse.Response.(string); ok {
					resp["output"] = s
				} else if v.FunctionResponse.Response != nil {
					resp["output"] = fmt.Sprintf("%v", v.FunctionResponse.Response)
				}
				if v.FunctionResponse.Error != "" {
					resp["error"] = v.FunctionResponse.Error
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       v.FunctionResponse.ID,
					Name:     v.FunctionResponse.Name,
					Response: resp,
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// buildConfig assembles generation config including system instruction, tool
// declarations and safety settings.
func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	temp := m.opts.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}

	var sys strings.Builder
	if req.Instructions != "" {
		sys.WriteString(req.Instructions)
	}
	for _, c := range req.Contents {
		if c.Role != "system" {
			continue
		}
		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok {
				if sys.Len() > 0 {
					sys.WriteString("\n")
				}
				sys.WriteString(tp.Text)
			}
		}
	}
	if sys.Len() > 0 {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(sys.String())}}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tdef := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        tdef.Function.Name,
				Description: tdef.Function.Description,
				Parameters:  schemaFromMap(tdef.Function.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if m.opts.BlockNone {
		config.SafetySettings = blockNoneSafetySettings()
	}

	return config
}

// blockNoneSafetySettings disables content filtering across all harm
// categories so code snippets are not rejected as unsafe.
func blockNoneSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

// schemaFromMap converts a minimal JSON schema map into a genai.Schema.
func schemaFromMap(schema map[string]any) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{Type: genaiType(schema["type"])}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = map[string]*genai.Schema{}
		for name, prop := range props {
			if pm, ok := prop.(map[string]any); ok {
				out.Properties[name] = schemaFromMap(pm)
			}
		}
	}
	switch req := schema["required"].(type) {
	case []string:
		out.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = schemaFromMap(items)
	}
	return out
}

func genaiType(v any) genai.Type {
	s, _ := v.(string)
	switch s {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var textBuilder strings.Builder
	var calls []core.FunctionCall
	finish := "stop"
	var usage *model.TokenUsage
	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}
		if resp.UsageMetadata != nil {
			usage = convertUsage(resp.UsageMetadata)
		}
		for _, cand := range resp.Candidates {
			if cand.FinishReason != "" {
				finish = finishReason(cand.FinishReason)
			}
			if cand.Content == nil {
				continue
			}
			for _, p := range cand.Content.Parts {
				if p.Text != "" {
					textBuilder.WriteString(p.Text)
					out <- model.Response{
						Partial: true,
						Content: core.Content{
							Role:  "assistant",
							Parts: []core.Part{core.TextPart{Text: p.Text}},
						},
					}
				}
				if p.FunctionCall != nil {
					calls = append(calls, convertCall(p.FunctionCall))
				}
			}
		}
	}
	finalParts := make([]core.Part, 0, len(calls)+1)
	if textBuilder.Len() > 0 {
		finalParts = append(finalParts, core.TextPart{Text: textBuilder.String()})
	}
	for _, fc := range calls {
		finalParts = append(finalParts, core.FunctionCallPart{FunctionCall: fc})
	}
	if len(calls) > 0 {
		finish = "tool_calls"
	}
	out <- model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: finalParts},
		FinishReason: finish,
		Usage:        usage,
	}
}

// handleNonStreaming processes a normal (non-streaming) generation.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
	if err != nil {
		errCh <- fmt.Errorf("gemini api error: %w", err)
		return
	}
	if len(resp.Candidates) == 0 {
		errCh <- fmt.Errorf("no candidates returned")
		return
	}
	cand := resp.Candidates[0]
	var parts []core.Part
	hasCalls := false
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				parts = append(parts, core.TextPart{Text: p.Text})
			}
			if p.FunctionCall != nil {
				parts = append(parts, core.FunctionCallPart{FunctionCall: convertCall(p.FunctionCall)})
				hasCalls = true
			}
		}
	}
	finish := finishReason(cand.FinishReason)
	if hasCalls {
		finish = "tool_calls"
	}
	var usage *model.TokenUsage
	if resp.UsageMetadata != nil {
		usage = convertUsage(resp.UsageMetadata)
	}
	out <- model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finish,
		Usage:        usage,
	}
}

// convertCall converts a genai function call into the normalized form. Missing
// call IDs are replaced with fresh ones so responses can be correlated.
func convertCall(fc *genai.FunctionCall) core.FunctionCall {
	id := fc.ID
	if id == "" {
		id = core.NewID()
	}
	args := "{}"
	if len(fc.Args) > 0 {
		if b, err := json.Marshal(fc.Args); err == nil {
			args = string(b)
		}
	}
	return core.FunctionCall{ID: id, Name: fc.Name, Arguments: args}
}

func convertUsage(u *genai.GenerateContentResponseUsageMetadata) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

func finishReason(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonStop, "":
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety:
		return "safety"
	default:
		return strings.ToLower(string(fr))
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
