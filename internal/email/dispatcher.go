package email

import (
	"context"
	"sync"
)

// Dispatcher delivers a reset code to a mailbox. The issuer treats
// delivery as best-effort: a dispatch failure never fails issuance.
type Dispatcher interface {
	SendResetCode(ctx context.Context, to, userName, code string) error
}

// Lazy defers dispatcher construction to first use and caches the
// result, so the process can start even when SMTP config is resolved
// late or the sender is never needed.
type Lazy struct {
	once     sync.Once
	build    func() (Dispatcher, error)
	d        Dispatcher
	buildErr error
}

func NewLazy(build func() (Dispatcher, error)) *Lazy {
	return &Lazy{build: build}
}

func (l *Lazy) SendResetCode(ctx context.Context, to, userName, code string) error {
	l.once.Do(func() {
		l.d, l.buildErr = l.build()
	})
	if l.buildErr != nil {
		return l.buildErr
	}
	return l.d.SendResetCode(ctx, to, userName, code)
}
