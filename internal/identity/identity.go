package identity

import "context"

// User identifies the person performing an operation.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	UniqueName string `json:"uniqueName,omitempty"`
}

// Project identifies the project that scopes all persisted records.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider resolves the active user and project for a request.
type Provider interface {
	CurrentUser(ctx context.Context) (User, bool)
	CurrentProject(ctx context.Context) (Project, bool)
}

type userContextKey struct{}
type userAgentContextKey struct{}

// ContextWithUser stores the authenticated user in context.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)
	return user, ok && user.ID != ""
}

// ContextWithUserAgent stores the client user agent in context.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, ua)
}

// UserAgentFromContext extracts the client user agent from context.
func UserAgentFromContext(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}

// ContextProvider resolves identity from request context values populated
// by the session middleware. The project is fixed at construction because
// the service instance is scoped to a single project.
type ContextProvider struct {
	project Project
}

// NewContextProvider constructs a ContextProvider for the given project.
func NewContextProvider(project Project) *ContextProvider {
	return &ContextProvider{project: project}
}

// CurrentUser returns the user carried by ctx.
func (p *ContextProvider) CurrentUser(ctx context.Context) (User, bool) {
	return UserFromContext(ctx)
}

// CurrentProject returns the project this service instance is scoped to.
func (p *ContextProvider) CurrentProject(ctx context.Context) (Project, bool) {
	if p == nil || p.project.ID == "" {
		return Project{}, false
	}
	return p.project, true
}

// StaticProvider returns a fixed identity. Used by background workers and
// tests where no session is present.
type StaticProvider struct {
	User    User
	Project Project
}

// CurrentUser returns the configured user.
func (p StaticProvider) CurrentUser(ctx context.Context) (User, bool) {
	return p.User, p.User.ID != ""
}

// CurrentProject returns the configured project.
func (p StaticProvider) CurrentProject(ctx context.Context) (Project, bool) {
	return p.Project, p.Project.ID != ""
}
