package llm

import (
	"context"
)

// Middleware wraps a Client with additional behavior. Middlewares compose
// via Chain into a processing pipeline.
type Middleware func(next Client) Client

// clientFunc adapts plain functions to the Client interface.
type clientFunc struct {
	complete  func(context.Context, Request) (Response, error)
	modelName func() string
}

func (f clientFunc) Complete(ctx context.Context, in Request) (Response, error) {
	return f.complete(ctx, in)
}

func (f clientFunc) GetModelName() string {
	return f.modelName()
}

// WrapClient builds a Client from function implementations. Middleware
// implementations use it to wrap behavior around a next client.
func WrapClient(complete func(context.Context, Request) (Response, error), modelName func() string) Client {
	return clientFunc{complete: complete, modelName: modelName}
}

// Chain composes middlewares around a base client. Earlier middlewares are
// outermost: Chain(c, mw1, mw2) calls mw1 first, then mw2, then c.
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
