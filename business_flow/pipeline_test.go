package businessflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineReq struct {
	value string
}

type pipelineRes struct {
	value string
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	var order []string

	p := &Pipeline[*pipelineReq, *pipelineRes]{
		Validators: []Validator[*pipelineReq]{
			ValidatorFunc[*pipelineReq](func(ctx context.Context, req *pipelineReq) error {
				order = append(order, "validate")
				return nil
			}),
		},
		RequestTransformers: []RequestTransformer[*pipelineReq]{
			RequestTransformerFunc[*pipelineReq](func(ctx context.Context, req *pipelineReq) (*pipelineReq, error) {
				order = append(order, "transform-req")
				req.value = strings.ToUpper(req.value)
				return req, nil
			}),
		},
		Executors: []Executor[*pipelineReq, *pipelineRes]{
			ExecutorFunc[*pipelineReq, *pipelineRes](func(ctx context.Context, req *pipelineReq) (*pipelineRes, error) {
				order = append(order, "execute")
				return &pipelineRes{value: req.value}, nil
			}),
		},
		ResponseTransformers: []ResponseTransformer[*pipelineRes]{
			ResponseTransformerFunc[*pipelineRes](func(ctx context.Context, res *pipelineRes) (*pipelineRes, error) {
				order = append(order, "transform-res")
				res.value += "!"
				return res, nil
			}),
		},
	}

	res, err := p.Run(context.Background(), &pipelineReq{value: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "OK!", res.value)
	assert.Equal(t, []string{"validate", "transform-req", "execute", "transform-res"}, order)
}

func TestPipelineValidatorsFailFast(t *testing.T) {
	firstErr := errors.New("first validator failed")
	secondRan := false

	p := &Pipeline[*pipelineReq, *pipelineRes]{
		Validators: []Validator[*pipelineReq]{
			ValidatorFunc[*pipelineReq](func(ctx context.Context, req *pipelineReq) error {
				return firstErr
			}),
			ValidatorFunc[*pipelineReq](func(ctx context.Context, req *pipelineReq) error {
				secondRan = true
				return nil
			}),
		},
		Executors: []Executor[*pipelineReq, *pipelineRes]{
			ExecutorFunc[*pipelineReq, *pipelineRes](func(ctx context.Context, req *pipelineReq) (*pipelineRes, error) {
				t.Fatal("executor must not run after a validation failure")
				return nil, nil
			}),
		},
	}

	res, err := p.Run(context.Background(), &pipelineReq{})
	require.ErrorIs(t, err, firstErr)
	assert.Nil(t, res)
	assert.False(t, secondRan)
}

func TestPipelineRequestTransformerErrorStopsRun(t *testing.T) {
	transformErr := errors.New("transform failed")

	p := &Pipeline[*pipelineReq, *pipelineRes]{
		RequestTransformers: []RequestTransformer[*pipelineReq]{
			RequestTransformerFunc[*pipelineReq](func(ctx context.Context, req *pipelineReq) (*pipelineReq, error) {
				return nil, transformErr
			}),
		},
		Executors: []Executor[*pipelineReq, *pipelineRes]{
			ExecutorFunc[*pipelineReq, *pipelineRes](func(ctx context.Context, req *pipelineReq) (*pipelineRes, error) {
				t.Fatal("executor must not run after a transformer failure")
				return nil, nil
			}),
		},
	}

	_, err := p.Run(context.Background(), &pipelineReq{})
	require.ErrorIs(t, err, transformErr)
}

func TestPipelineLastExecutorResultWins(t *testing.T) {
	p := &Pipeline[*pipelineReq, *pipelineRes]{
		Executors: []Executor[*pipelineReq, *pipelineRes]{
			ExecutorFunc[*pipelineReq, *pipelineRes](func(ctx context.Context, req *pipelineReq) (*pipelineRes, error) {
				return &pipelineRes{value: "first"}, nil
			}),
			ExecutorFunc[*pipelineReq, *pipelineRes](func(ctx context.Context, req *pipelineReq) (*pipelineRes, error) {
				return &pipelineRes{value: "second"}, nil
			}),
		},
	}

	res, err := p.Run(context.Background(), &pipelineReq{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.value)
}

func TestPipelinePanicsWithoutExecutors(t *testing.T) {
	p := &Pipeline[*pipelineReq, *pipelineRes]{}

	assert.Panics(t, func() {
		_, _ = p.Run(context.Background(), &pipelineReq{})
	})
}

func TestPipelinePanicsOnNilExecutorResult(t *testing.T) {
	p := &Pipeline[*pipelineReq, *pipelineRes]{
		Executors: []Executor[*pipelineReq, *pipelineRes]{
			ExecutorFunc[*pipelineReq, *pipelineRes](func(ctx context.Context, req *pipelineReq) (*pipelineRes, error) {
				return nil, nil
			}),
		},
	}

	assert.Panics(t, func() {
		_, _ = p.Run(context.Background(), &pipelineReq{})
	})
}

func TestPipelineResponseTransformerError(t *testing.T) {
	resErr := errors.New("response transform failed")

	p := &Pipeline[*pipelineReq, *pipelineRes]{
		Executors: []Executor[*pipelineReq, *pipelineRes]{
			ExecutorFunc[*pipelineReq, *pipelineRes](func(ctx context.Context, req *pipelineReq) (*pipelineRes, error) {
				return &pipelineRes{value: "ok"}, nil
			}),
		},
		ResponseTransformers: []ResponseTransformer[*pipelineRes]{
			ResponseTransformerFunc[*pipelineRes](func(ctx context.Context, res *pipelineRes) (*pipelineRes, error) {
				return nil, resErr
			}),
		},
	}

	_, err := p.Run(context.Background(), &pipelineReq{})
	require.ErrorIs(t, err, resErr)
}
