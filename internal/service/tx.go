package service

import "context"

// TxRepositories are the catalog repositories bound to one transaction.
type TxRepositories interface {
	Courses() CourseRepositoryInterface
	Chunks() CourseChunkRepositoryInterface
}

// TxRunner runs fn inside a transaction; fn's error aborts it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
