package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/go-redirects/pkg/config"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
)

const (
	sessionTTL    = 24 * time.Hour
	userInfoURL   = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateCookie   = "oauthstate"
	stateLifetime = 20 * time.Minute
)

// IssueToken signs an HS256 token for subject that expires after ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return signed, expiresAt, err
}

type AuthHandler struct {
	oauthConfig   *oauth2.Config
	jwtSecret     string
	frontendURL   string
	allowedEmails []string
	isProduction  bool
	userInfoURL   string
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		jwtSecret:     cfg.JWTSecret,
		frontendURL:   cfg.FrontendURL,
		allowedEmails: cfg.AllowedEmails,
		isProduction:  cfg.IsProduction(),
		userInfoURL:   userInfoURL,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.generateStateOauthCookie(w)
	if err != nil {
		logger.Log.Error("oauth state generation failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	oauthState, err := r.Cookie(stateCookie)
	if err != nil {
		logger.Log.Warn("oauth callback without state cookie", zap.Error(err))
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		logger.Log.Warn("oauth callback state mismatch")
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	token, err := h.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		logger.Log.Error("oauth code exchange failed", zap.Error(err))
		http.Error(w, "code exchange failed", http.StatusInternalServerError)
		return
	}

	user, err := h.fetchUser(ctx, token)
	if err != nil {
		logger.Log.Error("oauth user info failed", zap.Error(err))
		http.Error(w, "failed getting user info", http.StatusInternalServerError)
		return
	}

	if len(h.allowedEmails) > 0 && !slices.Contains(h.allowedEmails, user.Email) {
		logger.Log.Warn("login denied", zap.String("email", user.Email))
		http.Error(w, "Access denied: your email is not in the allowlist", http.StatusForbidden)
		return
	}

	signed, expiresAt, err := IssueToken(h.jwtSecret, user.Email, sessionTTL)
	if err != nil {
		logger.Log.Error("signing session token failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    signed,
		Expires:  expiresAt,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	logger.Log.Info("login successful", zap.String("email", user.Email))
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchUser(ctx context.Context, token *oauth2.Token) (*GoogleUser, error) {
	resp, err := h.oauthConfig.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(stateLifetime),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}
