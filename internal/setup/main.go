// Package setup registers conman's services with the injector.
package setup

import (
	"github.com/samber/do"

	"conman/internal/audit"
	"conman/internal/auth"
	"conman/internal/config"
	"conman/internal/launch"
	"conman/internal/manager"
	"conman/internal/secret"
	"conman/internal/server"
	"conman/internal/store"
)

// SetupServices provides every service from cfg. Nothing is built until first invoked,
// so commands that never touch the key file never create one.
func SetupServices(i *do.Injector, cfg *config.Config) {
	do.ProvideValue(i, cfg)
	do.Provide(i, func(i *do.Injector) (*store.Store, error) {
		return store.New(cfg.DataFile), nil
	})
	do.Provide(i, func(i *do.Injector) (*secret.Box, error) {
		return secret.LoadOrCreate(cfg.KeyFile, cfg.Cipher)
	})
	do.Provide(i, func(i *do.Injector) (*audit.Log, error) {
		return audit.New(cfg.AuditFile), nil
	})
	do.Provide(i, func(i *do.Injector) (*launch.Dispatcher, error) {
		box, err := do.Invoke[*secret.Box](i)
		if err != nil {
			return nil, err
		}
		return launch.NewDispatcher(box, launch.Terminal{Emulator: cfg.Terminal}), nil
	})
	do.Provide(i, func(i *do.Injector) (*manager.Manager, error) {
		box, err := do.Invoke[*secret.Box](i)
		if err != nil {
			return nil, err
		}
		return manager.New(
			do.MustInvoke[*store.Store](i),
			box,
			do.MustInvoke[*launch.Dispatcher](i),
			do.MustInvoke[*audit.Log](i),
		)
	})
	do.Provide(i, func(i *do.Injector) (*auth.Guard, error) {
		return auth.NewGuard(cfg.AuthFile), nil
	})
	do.Provide(i, func(i *do.Injector) (*server.Server, error) {
		m, err := do.Invoke[*manager.Manager](i)
		if err != nil {
			return nil, err
		}
		return server.New(m, do.MustInvoke[*auth.Guard](i)), nil
	})
}
