package devserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicvoice/civicvoice/client-go/internal/issues"
	"github.com/civicvoice/civicvoice/client-go/internal/models"
	"github.com/civicvoice/civicvoice/client-go/pkg/middleware"
)

// Config holds devserver settings
type Config struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Server is an in-memory implementation of the portal's auth and issue
// endpoints. It exists so the CLI works without a deployed backend and so
// integration-style tests exercise the real wire shapes. Not for production.
type Server struct {
	cfg Config

	mu           sync.Mutex
	users        map[string]*account       // by user id
	byIdentifier map[string]string         // email or phone -> user id
	refresh      map[string]refreshSession // refresh token -> session
	issues       []issues.Issue

	engine *gin.Engine
}

type account struct {
	user         models.UserIdentity
	passwordHash []byte
}

type refreshSession struct {
	userID    string
	expiresAt time.Time
}

func New(cfg Config) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "devserver-insecure-secret-change-me"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	s := &Server{
		cfg:          cfg,
		users:        map[string]*account{},
		byIdentifier: map[string]string{},
		refresh:      map[string]refreshSession{},
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	auth := r.Group("/auth")
	auth.POST("/login", middleware.RateLimitMiddleware(5, 10), s.login)
	auth.POST("/register", s.register)
	auth.POST("/refresh", s.refreshToken)

	authed := r.Group("/", middleware.AuthMiddleware(cfg.JWTSecret))
	authed.PUT("/users/:id/complete-profile", s.completeProfile)
	authed.POST("/issues", s.createIssue)

	r.GET("/issues", s.listIssues)

	s.engine = r
	return s
}

// Engine exposes the router for http.Server or httptest.
func (s *Server) Engine() http.Handler { return s.engine }

// Seed registers a user directly, bypassing the HTTP surface. Returns the id.
func (s *Server) Seed(u models.UserIdentity, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &account{user: u, passwordHash: hash}
	if u.Email != "" {
		s.byIdentifier[strings.ToLower(u.Email)] = u.ID
	}
	if u.PhoneNumber != "" {
		s.byIdentifier[u.PhoneNumber] = u.ID
	}
	return u.ID, nil
}

func (s *Server) mintAccess(u *models.UserIdentity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"name": u.DisplayName(),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(s.cfg.AccessTTL).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *Server) issuePair(u *models.UserIdentity) (*models.AuthResponse, error) {
	access, err := s.mintAccess(u)
	if err != nil {
		return nil, err
	}
	rt := uuid.NewString()
	s.mu.Lock()
	s.refresh[rt] = refreshSession{userID: u.ID, expiresAt: time.Now().Add(s.cfg.RefreshTTL)}
	s.mu.Unlock()
	user := *u
	return &models.AuthResponse{AccessToken: access, RefreshToken: rt, User: &user}, nil
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		EmailOrPhone string `json:"emailOrPhone" binding:"required"`
		Password     string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	id, ok := s.byIdentifier[strings.ToLower(req.EmailOrPhone)]
	var acc *account
	if ok {
		acc = s.users[id]
	}
	s.mu.Unlock()
	if acc == nil || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	resp, err := s.issuePair(&acc.user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		FirstName   string `json:"firstName" binding:"required"`
		LastName    string `json:"lastName" binding:"required"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phoneNumber"`
		Password    string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Email == "" && req.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or phone number required"})
		return
	}
	s.mu.Lock()
	_, emailTaken := s.byIdentifier[strings.ToLower(req.Email)]
	_, phoneTaken := s.byIdentifier[req.PhoneNumber]
	s.mu.Unlock()
	if (req.Email != "" && emailTaken) || (req.PhoneNumber != "" && phoneTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		return
	}
	u := models.UserIdentity{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Role:        models.Role{Name: models.RoleCitizen},
	}
	if _, err := s.Seed(u, req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}
	s.mu.Lock()
	id := s.byIdentifier[strings.ToLower(req.Email)]
	if id == "" {
		id = s.byIdentifier[req.PhoneNumber]
	}
	acc := s.users[id]
	s.mu.Unlock()
	resp, err := s.issuePair(&acc.user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// refreshToken validates and rotates the refresh token.
func (s *Server) refreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	sess, ok := s.refresh[req.RefreshToken]
	if ok {
		delete(s.refresh, req.RefreshToken)
	}
	var acc *account
	if ok && time.Now().Before(sess.expiresAt) {
		acc = s.users[sess.userID]
	}
	s.mu.Unlock()
	if acc == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	access, err := s.mintAccess(&acc.user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	rt := uuid.NewString()
	s.mu.Lock()
	s.refresh[rt] = refreshSession{userID: acc.user.ID, expiresAt: time.Now().Add(s.cfg.RefreshTTL)}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "refreshToken": rt})
}

func (s *Server) completeProfile(c *gin.Context) {
	id := c.Param("id")
	if sub := subjectOf(c); sub != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot modify another user's profile"})
		return
	}
	var req struct {
		Location     *models.Location `json:"location"`
		ProfileImage string           `json:"profileImage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	acc := s.users[id]
	if acc != nil {
		if req.Location != nil {
			acc.user.Location = req.Location
		}
		if req.ProfileImage != "" {
			acc.user.ProfileImage = req.ProfileImage
		}
	}
	var out models.UserIdentity
	if acc != nil {
		out = acc.user
	}
	s.mu.Unlock()
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, &out)
}

func (s *Server) createIssue(c *gin.Context) {
	var req issues.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}
	rec := issues.Issue{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      "OPEN",
		Location:    req.Location,
		ReportedBy:  subjectOf(c),
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.issues = append(s.issues, rec)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, &rec)
}

func (s *Server) listIssues(c *gin.Context) {
	status := c.Query("status")
	category := c.Query("category")
	s.mu.Lock()
	out := make([]issues.Issue, 0, len(s.issues))
	for _, is := range s.issues {
		if status != "" && is.Status != status {
			continue
		}
		if category != "" && is.Category != category {
			continue
		}
		out = append(out, is)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func subjectOf(c *gin.Context) string {
	v, ok := c.Get("claims")
	if !ok {
		return ""
	}
	cm, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	sub, _ := cm["sub"].(string)
	return sub
}
