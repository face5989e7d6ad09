package flows

import "context"

// UserRecord is the flow-local view of a user account.
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Role         string
	Disabled     bool
}

// Deps groups the dependency sets built once by the Engine.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
}

// Service is the flow runner held by the Engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.IssuePair != nil && s.deps.Refresh.IssuePair != nil
}

func (s Service) Login(ctx context.Context, email, password string) LoginResult {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}
