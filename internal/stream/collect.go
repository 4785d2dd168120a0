package stream

import (
	"io"

	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
)

// Collect drains a frame scanner into a single unary-shaped response,
// concatenating adjacent text and thought parts. Used when an empty unary
// reply falls back to the streaming endpoint.
func Collect(frames *FrameScanner) (*gemini.Response, error) {
	out := &gemini.Response{}
	var parts []gemini.Part

	appendPart := func(p gemini.Part) {
		if n := len(parts); n > 0 && p.InlineData == nil && p.FunctionCall == nil &&
			parts[n-1].InlineData == nil && parts[n-1].FunctionCall == nil &&
			parts[n-1].Thought == p.Thought {
			parts[n-1].Text += p.Text
			if p.ThoughtSignature != "" {
				parts[n-1].ThoughtSignature = p.ThoughtSignature
			}
			return
		}
		parts = append(parts, p)
	}

	finish := ""
	for {
		frame, err := frames.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		resp := frame.Response
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			finish = resp.Candidates[0].FinishReason
		}
		if resp.UsageMetadata != nil {
			out.UsageMetadata = resp.UsageMetadata
		}
		if resp.ModelVersion != "" {
			out.ModelVersion = resp.ModelVersion
		}
		for _, part := range resp.FirstCandidateParts() {
			appendPart(part)
		}
	}

	if len(parts) > 0 || finish != "" {
		out.Candidates = []gemini.Candidate{{
			Content:      &gemini.Content{Role: "model", Parts: parts},
			FinishReason: finish,
		}}
	}
	return out, nil
}
