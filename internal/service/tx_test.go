package service

import (
	"context"
	"sync/atomic"
)

type testTxRepos struct {
	courses CourseRepositoryInterface
	chunks  CourseChunkRepositoryInterface
}

func (t *testTxRepos) Courses() CourseRepositoryInterface {
	return t.courses
}

func (t *testTxRepos) Chunks() CourseChunkRepositoryInterface {
	return t.chunks
}

type testTxRunner struct {
	repos  TxRepositories
	called atomic.Int32
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called.Add(1)
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}
