package forkcheck

import (
	"context"

	"github.com/wagiedev/forkcheck-go/internal/client"
)

// checkerWrapper adapts the internal client to the public interface.
type checkerWrapper struct {
	impl *client.Client
}

// Compile-time check that *checkerWrapper implements the Checker interface.
var _ Checker = (*checkerWrapper)(nil)

func newCheckerImpl() Checker {
	return &checkerWrapper{impl: client.New()}
}

func (c *checkerWrapper) Start(ctx context.Context, opts ...Option) error {
	return c.impl.Start(ctx, applyOptions(opts))
}

func (c *checkerWrapper) EmitFile(fileName, text string) *Future[EmitResult] {
	return c.impl.EmitFile(fileName, text)
}

func (c *checkerWrapper) UpdateFile(fileName, text string) *Future[Ack] {
	return c.impl.UpdateFile(fileName, text)
}

func (c *checkerWrapper) RemoveFile(fileName string) *Future[Ack] {
	return c.impl.RemoveFile(fileName)
}

func (c *checkerWrapper) Diagnostics() *Future[[]Diagnostic] {
	return c.impl.Diagnostics()
}

func (c *checkerWrapper) Files() *Future[[]FileDescriptor] {
	return c.impl.Files()
}

func (c *checkerWrapper) SessionID() string {
	return c.impl.SessionID()
}

func (c *checkerWrapper) State() State {
	return c.impl.State()
}

func (c *checkerWrapper) Fatal() <-chan *FatalExitError {
	return c.impl.Fatal()
}

func (c *checkerWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

func (c *checkerWrapper) Kill() error {
	return c.impl.Kill()
}

func (c *checkerWrapper) Close() error {
	return c.impl.Close()
}
