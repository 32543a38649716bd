// Package businessflow contains the business logic for the device profile service.
package businessflow

import (
	"context"
	"reflect"
)

// Validator checks a request before any work happens. The first failure
// wins; later validators never run.
type Validator[Req any] interface {
	Validate(ctx context.Context, req Req) error
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc[Req any] func(ctx context.Context, req Req) error

// Validate implements Validator
func (f ValidatorFunc[Req]) Validate(ctx context.Context, req Req) error {
	return f(ctx, req)
}

// RequestTransformer derives request state before execution, e.g. cursor
// decoding. Transformers run in order and may fail.
type RequestTransformer[Req any] interface {
	Transform(ctx context.Context, req Req) (Req, error)
}

// RequestTransformerFunc adapts a function to the RequestTransformer interface
type RequestTransformerFunc[Req any] func(ctx context.Context, req Req) (Req, error)

// Transform implements RequestTransformer
func (f RequestTransformerFunc[Req]) Transform(ctx context.Context, req Req) (Req, error) {
	return f(ctx, req)
}

// Executor performs the actual operation. The last executor's result is
// the pipeline result.
type Executor[Req, Res any] interface {
	Execute(ctx context.Context, req Req) (Res, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Execute implements Executor
func (f ExecutorFunc[Req, Res]) Execute(ctx context.Context, req Req) (Res, error) {
	return f(ctx, req)
}

// ResponseTransformer adapts the result after execution
type ResponseTransformer[Res any] interface {
	Transform(ctx context.Context, res Res) (Res, error)
}

// ResponseTransformerFunc adapts a function to the ResponseTransformer interface
type ResponseTransformerFunc[Res any] func(ctx context.Context, res Res) (Res, error)

// Transform implements ResponseTransformer
func (f ResponseTransformerFunc[Res]) Transform(ctx context.Context, res Res) (Res, error) {
	return f(ctx, res)
}

// Pipeline composes an endpoint's behavior from reusable stages:
// validate, transform the request, execute, transform the response.
// Domain failures flow out as errors; a pipeline wired without executors
// or an executor producing no result is a programmer error and panics.
type Pipeline[Req, Res any] struct {
	Validators           []Validator[Req]
	RequestTransformers  []RequestTransformer[Req]
	Executors            []Executor[Req, Res]
	ResponseTransformers []ResponseTransformer[Res]
}

// Run drives the request through all four stages
func (p *Pipeline[Req, Res]) Run(ctx context.Context, req Req) (Res, error) {
	var zero Res

	for _, v := range p.Validators {
		if err := v.Validate(ctx, req); err != nil {
			return zero, err
		}
	}

	current := req
	for _, t := range p.RequestTransformers {
		var err error
		current, err = t.Transform(ctx, current)
		if err != nil {
			return zero, err
		}
	}

	if len(p.Executors) == 0 {
		panic("businessflow: pipeline has no executors")
	}

	var res Res
	for _, e := range p.Executors {
		var err error
		res, err = e.Execute(ctx, current)
		if err != nil {
			return zero, err
		}
	}

	if isNilResult(res) {
		panic("businessflow: executor produced no result")
	}

	for _, t := range p.ResponseTransformers {
		var err error
		res, err = t.Transform(ctx, res)
		if err != nil {
			return zero, err
		}
	}

	return res, nil
}

func isNilResult(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
