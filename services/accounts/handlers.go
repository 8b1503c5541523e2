// ABOUTME: HTTP handlers for the accounts service.
// ABOUTME: Request bodies are checked with validator struct tags.

package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/auth"
	apierrors "github.com/2389/hbx/internal/errors"
)

var validate = validator.New()

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// decode reads a JSON body and runs struct validation, writing the error
// response itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Invalid JSON body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrValidationFailed,
				verrs[0].Field()+" failed "+verrs[0].Tag()+" validation", verrs[0].Field())
			return false
		}
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrValidationFailed, err.Error())
		return false
	}
	return true
}

func (s *Service) ready(w http.ResponseWriter) bool {
	if s.store == nil {
		apierrors.WriteError(w, http.StatusServiceUnavailable, apierrors.ErrServiceUnavailable, "Accounts service not initialized")
		return false
	}
	return true
}

// login handles POST /api/auth/login.
func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	if s.auth == nil {
		apierrors.WriteError(w, http.StatusServiceUnavailable, apierrors.ErrServiceUnavailable, "Token signing not configured")
		return
	}
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := s.store.Authenticate(req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		log.Warn().Str("username", req.Username).Msg("failed login attempt")
		apierrors.WriteError(w, http.StatusForbidden, apierrors.ErrForbidden, "Username or password is incorrect.")
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Login failed")
		return
	}

	token, err := s.auth.Issue(u.Username, u.Name, u.Admin)
	if err != nil {
		log.Error().Err(err).Msg("failed to sign token")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Login failed")
		return
	}
	apierrors.WriteJSON(w, http.StatusCreated, api.Session{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.auth.Expiry().Seconds()),
	})
}

// settings handles GET /api/auth/settings.
func (s *Service) settings(w http.ResponseWriter, r *http.Request) {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "Homebridge"
	}
	apierrors.WriteJSON(w, http.StatusOK, api.Settings{Env: api.Env{
		ServiceMode:            s.server.ServiceMode,
		RecommendChildBridges:  s.server.RecommendChildBridges,
		HomebridgeInstanceName: name,
		PackageName:            PackageName,
		PackageVersion:         PackageVersion,
		Platform:               runtime.GOOS,
	}})
}

// requireAdmin rejects non-admin callers. Requests that never passed the
// auth middleware carry no claims and are let through.
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if ok && !claims.Admin {
		apierrors.WriteError(w, http.StatusForbidden, apierrors.ErrForbidden, "Administrator access required")
		return false
	}
	return true
}

func (s *Service) listUsers(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) || !requireAdmin(w, r) {
		return
	}
	users, err := s.store.ListUsers()
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to list users")
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, users)
}

func (s *Service) addUser(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) || !requireAdmin(w, r) {
		return
	}
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrMissingField, "Password is required", "password")
		return
	}

	u, err := s.store.CreateUser(api.UserInput(req))
	if errors.Is(err, ErrDuplicateUsername) {
		apierrors.WriteErrorWithField(w, http.StatusConflict, apierrors.ErrConflict, "A user with this username already exists", "username")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to create user")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to create user")
		return
	}
	log.Info().Str("username", u.Username).Str("by", auth.UserFromContext(r.Context())).Msg("user created")
	apierrors.WriteJSON(w, http.StatusCreated, u)
}

// updateUser handles PATCH /api/users/{id}. Non-admins may edit only
// themselves and cannot grant admin.
func (s *Service) updateUser(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req userRequest
	if !decode(w, r, &req) {
		return
	}

	existing, err := s.store.GetUser(id)
	if errors.Is(err, ErrNotFound) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "User not found")
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to load user")
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && !claims.Admin {
		if claims.Username != existing.Username {
			apierrors.WriteError(w, http.StatusForbidden, apierrors.ErrForbidden, "Administrator access required")
			return
		}
		req.Admin = existing.Admin
	}

	if existing.Admin && !req.Admin {
		if n, err := s.store.CountAdmins(); err == nil && n <= 1 {
			apierrors.WriteErrorWithField(w, http.StatusConflict, apierrors.ErrConflict, "Cannot remove the last administrator", "admin")
			return
		}
	}

	u, err := s.store.UpdateUser(id, api.UserInput(req))
	if errors.Is(err, ErrDuplicateUsername) {
		apierrors.WriteErrorWithField(w, http.StatusConflict, apierrors.ErrConflict, "A user with this username already exists", "username")
		return
	}
	if err != nil {
		log.Error().Err(err).Int("id", id).Msg("failed to update user")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to update user")
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, u)
}

func (s *Service) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) || !requireAdmin(w, r) {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}

	u, err := s.store.GetUser(id)
	if errors.Is(err, ErrNotFound) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "User not found")
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to load user")
		return
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Username == u.Username {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "You cannot delete yourself")
		return
	}
	if u.Admin {
		if n, err := s.store.CountAdmins(); err == nil && n <= 1 {
			apierrors.WriteError(w, http.StatusConflict, apierrors.ErrConflict, "Cannot delete the last administrator")
			return
		}
	}

	if err := s.store.DeleteUser(id); err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "User id must be a number", "id")
		return 0, false
	}
	return id, true
}
