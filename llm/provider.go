// Package llm defines the chat-model contract. The orchestration layer only
// sees this interface; the concrete transport (model proxy, local runtime)
// lives in providers/.
package llm

import (
	"context"
	"errors"

	"github.com/kubewise-ai/kubewise/types"
)

var ErrNotSupported = errors.New("operation not supported by provider")

type Capabilities struct {
	Tools            bool
	Streaming        bool
	StructuredOutput bool
}

type Provider interface {
	Name() string
	Capabilities() Capabilities
	Generate(ctx context.Context, req types.Request) (types.Response, error)
}
