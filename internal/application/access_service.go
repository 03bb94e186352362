package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/taskplanner/internal/persistence"
)

// Login failure reasons recorded on LoginAttempt records.
const (
	FailureInvalidCode = "invalid_code"
	FailureEmptyCode   = "empty_code"
)

// DefaultLoginAttemptLimit caps login attempt listings.
const DefaultLoginAttemptLimit = 100

// AccessService authenticates access codes and manages their registry.
type AccessService struct {
	store  persistence.Store
	hasher *CodeHasher
	tokens *TokenIssuer
	logger *slog.Logger
	// guards serialises the uniqueness scan with the insert that follows it.
	// It is separate from the store's own registry, which is not reentrant.
	guards *persistence.Locks
}

// NewAccessService constructs an AccessService.
func NewAccessService(store persistence.Store, hasher *CodeHasher, tokens *TokenIssuer, logger *slog.Logger) *AccessService {
	return &AccessService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: defaultLogger(logger),
		guards: persistence.NewLocks(),
	}
}

func (s *AccessService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AccessService", operation, attrs...)
}

// Login matches the secret against the active access codes in registration
// order and issues a session token for the first match. Every attempt is
// recorded.
func (s *AccessService) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	if s == nil {
		err = fmt.Errorf("AccessService is nil")
		return
	}

	secret := strings.TrimSpace(params.Secret)
	logger := s.loggerWith(ctx, "Login", "client_ip", params.ClientIP)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "login succeeded",
			"label", result.Principal.Label,
			"role", result.Principal.Role,
		)
	}()

	var match persistence.Record
	reason := FailureEmptyCode
	if secret != "" {
		reason = FailureInvalidCode
		if match, err = s.matchCode(ctx, secret); err != nil {
			return
		}
	}

	attempt := persistence.Record{
		"submitted_code": MaskCode(secret),
		"code_label":     nil,
		"code_role":      nil,
		"success":        match != nil,
		"failure_reason": nil,
		"client_ip":      nilIfEmpty(params.ClientIP),
	}
	if match != nil {
		attempt["code_label"] = match.String("label")
		attempt["code_role"] = match.String("role")
	} else {
		attempt["failure_reason"] = reason
	}
	if _, err = s.store.Create(ctx, EntityLoginAttempts, attempt); err != nil {
		err = fmt.Errorf("record login attempt: %w", err)
		return
	}

	if match == nil {
		err = ErrInvalidCredentials
		return
	}

	role, _ := ParseRole(match.String("role"))
	label := match.String("label")
	token, expiresAt, issueErr := s.tokens.Issue(label, role)
	if issueErr != nil {
		err = issueErr
		return
	}

	result = LoginResult{
		Token:     token,
		Principal: Principal{Label: label, Role: role, ExpiresAt: expiresAt},
	}
	return
}

func (s *AccessService) matchCode(ctx context.Context, secret string) (persistence.Record, error) {
	codes, err := s.store.GetAll(ctx, EntityAccessCodes)
	if err != nil {
		return nil, err
	}
	sortByID(codes)

	for _, code := range codes {
		if !code.Bool("is_active", true) {
			continue
		}
		if _, known := ParseRole(code.String("role")); !known {
			continue
		}
		ok, verr := s.hasher.Verify(code.String("code_hash"), secret)
		if verr != nil {
			id, _ := code.ID()
			s.loggerWith(ctx, "Login").WarnContext(ctx, "unreadable access code hash", "code_id", id, "error", verr)
			continue
		}
		if ok {
			return code, nil
		}
	}
	return nil, nil
}

// ValidateToken resolves a session token into a principal.
func (s *AccessService) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.tokens == nil {
		return Principal{}, fmt.Errorf("AccessService is nil")
	}
	principal, err := s.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		s.loggerWith(ctx, "ValidateToken").DebugContext(ctx, "token rejected", "error", err)
		return Principal{}, err
	}
	return principal, nil
}

// EnsureAccessCodes registers seeds when no access code exists yet and
// reports how many were created.
func (s *AccessService) EnsureAccessCodes(ctx context.Context, seeds []AccessCodeSeed) (int, error) {
	mu := s.guards.For(EntityAccessCodes)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.store.GetAll(ctx, EntityAccessCodes)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, seed := range seeds {
		if _, err := s.register(ctx, CreateAccessCodeParams(seed)); err != nil {
			return created, fmt.Errorf("seed access code %q: %w", seed.Label, err)
		}
		created++
	}
	s.loggerWith(ctx, "EnsureAccessCodes").InfoContext(ctx, "default access codes registered", "count", created)
	return created, nil
}

// ListLoginAttempts returns the newest attempts first.
func (s *AccessService) ListLoginAttempts(ctx context.Context, principal Principal, limit int) ([]persistence.Record, error) {
	if err := Authorize(principal, RoleAdmin); err != nil {
		return nil, err
	}
	attempts, err := s.store.GetAll(ctx, EntityLoginAttempts)
	if err != nil {
		return nil, err
	}
	slices.Reverse(attempts)
	if limit <= 0 {
		limit = DefaultLoginAttemptLimit
	}
	return Paginate(attempts, 0, limit), nil
}

// ListAccessCodes returns the registry sorted by label, without hashes.
func (s *AccessService) ListAccessCodes(ctx context.Context, principal Principal) ([]AccessCodeView, error) {
	if err := Authorize(principal, RoleAdmin); err != nil {
		return nil, err
	}
	return s.AccessCodes(ctx)
}

// AccessCodes lists the registry without an authorisation check.
func (s *AccessService) AccessCodes(ctx context.Context) ([]AccessCodeView, error) {
	codes, err := s.store.GetAll(ctx, EntityAccessCodes)
	if err != nil {
		return nil, err
	}
	views := make([]AccessCodeView, 0, len(codes))
	for _, code := range codes {
		views = append(views, accessCodeView(code))
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Label < views[j].Label })
	return views, nil
}

// CreateAccessCode registers a new code on behalf of an admin.
func (s *AccessService) CreateAccessCode(ctx context.Context, principal Principal, params CreateAccessCodeParams) (AccessCodeView, error) {
	if err := Authorize(principal, RoleAdmin); err != nil {
		return AccessCodeView{}, err
	}
	return s.RegisterAccessCode(ctx, params)
}

// RegisterAccessCode validates and stores a code. Labels are unique and a code
// may not duplicate an existing one, also under concurrent registrations.
func (s *AccessService) RegisterAccessCode(ctx context.Context, params CreateAccessCodeParams) (AccessCodeView, error) {
	mu := s.guards.For(EntityAccessCodes)
	mu.Lock()
	defer mu.Unlock()
	return s.register(ctx, params)
}

// register expects the access code guard to be held.
func (s *AccessService) register(ctx context.Context, params CreateAccessCodeParams) (view AccessCodeView, err error) {
	label := strings.TrimSpace(params.Label)
	code := strings.TrimSpace(params.Code)

	logger := s.loggerWith(ctx, "RegisterAccessCode", "label", label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register access code", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "access code registered", "id", view.ID, "role", view.Role)
	}()

	vErr := &ValidationError{}
	if label == "" {
		vErr.add("label", "is required")
	}
	if code == "" {
		vErr.add("code", "is required")
	}
	role, ok := ParseRole(params.Role)
	if !ok {
		vErr.add("role", "must be one of: "+strings.Join(accessRoles, ", "))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var existing []persistence.Record
	if existing, err = s.store.GetAll(ctx, EntityAccessCodes); err != nil {
		return
	}
	for _, rec := range existing {
		if rec.String("label") == label {
			err = fmt.Errorf("%w: access code label %q", ErrAlreadyExists, label)
			return
		}
		if same, _ := s.hasher.Verify(rec.String("code_hash"), code); same {
			vErr.add("code", "is already in use")
			err = vErr
			return
		}
	}

	var rec persistence.Record
	rec, err = s.store.Create(ctx, EntityAccessCodes, persistence.Record{
		"label":     label,
		"code_hash": s.hasher.Hash(code),
		"role":      string(role),
		"is_active": true,
	})
	if err != nil {
		return
	}
	view = accessCodeView(rec)
	return
}

// UpdateAccessCode toggles activation or changes the role of a code.
func (s *AccessService) UpdateAccessCode(ctx context.Context, principal Principal, id int64, params UpdateAccessCodeParams) (view AccessCodeView, err error) {
	logger := s.loggerWith(ctx, "UpdateAccessCode", "id", id, "principal", principal.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update access code", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "access code updated", "is_active", view.IsActive, "role", view.Role)
	}()

	if err = Authorize(principal, RoleAdmin); err != nil {
		return
	}

	changes := persistence.Record{}
	if params.IsActive != nil {
		changes["is_active"] = *params.IsActive
	}
	if params.Role != nil {
		role, ok := ParseRole(*params.Role)
		if !ok {
			err = &ValidationError{FieldErrors: map[string]string{"role": "must be one of: " + strings.Join(accessRoles, ", ")}}
			return
		}
		changes["role"] = string(role)
	}

	var rec persistence.Record
	if rec, err = s.store.Update(ctx, EntityAccessCodes, id, changes); err != nil {
		err = storeError(err)
		return
	}
	view = accessCodeView(rec)
	return
}

// MaskCode keeps the first four characters of a submitted code.
func MaskCode(code string) string {
	runes := []rune(code)
	if len(runes) > 4 {
		runes = runes[:4]
	}
	return string(runes) + "***"
}

func accessCodeView(rec persistence.Record) AccessCodeView {
	id, _ := rec.ID()
	role, _ := ParseRole(rec.String("role"))
	return AccessCodeView{
		ID:        id,
		Label:     rec.String("label"),
		Role:      role,
		IsActive:  rec.Bool("is_active", true),
		CreatedAt: rec.String(persistence.FieldCreatedAt),
		UpdatedAt: rec.String(persistence.FieldUpdatedAt),
	}
}

func sortByID(records []persistence.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := records[i].ID()
		b, _ := records[j].ID()
		return a < b
	})
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SessionExpiry formats a principal expiry for clients.
func SessionExpiry(p Principal) string {
	return p.ExpiresAt.UTC().Format(time.RFC3339)
}
