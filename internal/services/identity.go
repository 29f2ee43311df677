package services

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/anonto42/writer/backend/pkg/mailer"
	"github.com/anonto42/writer/backend/pkg/metrics"
	"github.com/anonto42/writer/backend/pkg/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 80
	maxEmailLength    = 120
	minPasswordLength = 6
	searchLimit       = 20
)

var handleUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// IdentityService owns accounts: registration, credentials, OAuth linking,
// email verification, profile and preference edits.
type IdentityService struct {
	store   *repositories.Store
	tokens  *TokenIssuer
	mailer  mailer.Mailer
	images  storage.ImageStore
	metrics *metrics.Metrics
	log     *logrus.Logger
	baseURL string
}

func NewIdentityService(
	store *repositories.Store,
	tokens *TokenIssuer,
	m mailer.Mailer,
	images storage.ImageStore,
	mt *metrics.Metrics,
	log *logrus.Logger,
	baseURL string,
) *IdentityService {
	return &IdentityService{
		store:   store,
		tokens:  tokens,
		mailer:  m,
		images:  images,
		metrics: mt,
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

// OAuthProfile is the identity returned by an upstream provider.
type OAuthProfile struct {
	Provider      string
	Email         string
	EmailVerified bool // as asserted by the provider
	Name          string
	Picture       string
	FirebaseUID   string
}

type UpdateProfileInput struct {
	Username string
	Email    string
	Avatar   *ImageUpload
}

// SearchResult holds the matches for a search query.
type SearchResult struct {
	Query string        `json:"query"`
	Users []models.User `json:"users"`
	Posts []models.Post `json:"posts"`
}

// Register creates a password account and sends the verification mail.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	fields := map[string]string{}
	validateUsername(fields, username)
	validateEmail(fields, email)
	if len(in.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}
	if in.Password != in.Password2 {
		fields["password2"] = "passwords must match"
	}
	if len(fields) > 0 {
		return nil, apperrors.InvalidFields(fields)
	}

	if err := s.checkAvailable(ctx, fields, username, email, 0); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperrors.InvalidFields(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		ImageFile:    models.DefaultAvatar,
		Preferences:  models.DefaultPreferences(),
		LastSeen:     time.Now().UTC(),
	}
	if err := s.store.Users.CreateUser(ctx, user); err != nil {
		return nil, storeErr(err, nil)
	}
	s.metrics.Registrations.WithLabelValues("password").Inc()

	if err := s.SendVerification(ctx, user); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": user.ID}).WithError(err).Warn("verification mail not sent")
	}
	return user, nil
}

// Authenticate checks an email and password. Unknown emails, OAuth-only
// accounts and wrong passwords produce the same error.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, storeErr(err, nil)
	}
	if !user.HasPassword() {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// LoginWithOAuth resolves a provider profile to an account. An account with
// the same email is reused and linked; otherwise a verified account with a
// fresh handle is created. Profiles whose email the provider has not verified
// are refused before any lookup.
func (s *IdentityService) LoginWithOAuth(ctx context.Context, p OAuthProfile) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, apperrors.ErrOAuthNoEmail
	}
	if !p.EmailVerified {
		return nil, apperrors.ErrOAuthEmailUnverified
	}

	if p.FirebaseUID != "" {
		user, err := s.store.Users.GetUserByFirebaseUID(ctx, p.FirebaseUID)
		if err == nil {
			return user, nil
		}
		if !isNotFound(err) {
			return nil, storeErr(err, nil)
		}
	}

	var user *models.User
	created := false
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		existing, err := tx.Users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			user = existing
			if p.FirebaseUID != "" && user.FirebaseUID == nil {
				uid := p.FirebaseUID
				user.FirebaseUID = &uid
				return tx.Users.UpdateUser(ctx, user)
			}
			return nil
		case !isNotFound(err):
			return err
		}

		handle, err := s.uniqueHandle(ctx, tx, p.Name, email)
		if err != nil {
			return err
		}
		user = &models.User{
			Username:    handle,
			Email:       email,
			ImageFile:   models.DefaultAvatar,
			IsVerified:  true,
			Preferences: models.DefaultPreferences(),
			LastSeen:    time.Now().UTC(),
		}
		if p.Picture != "" {
			user.ImageFile = p.Picture
		}
		if p.FirebaseUID != "" {
			uid := p.FirebaseUID
			user.FirebaseUID = &uid
		}
		created = true
		return tx.Users.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	if created {
		provider := p.Provider
		if provider == "" {
			provider = "oauth"
		}
		s.metrics.Registrations.WithLabelValues(provider).Inc()
	}
	return user, nil
}

// SendVerification mails a verification link to user. Without an SMTP relay
// the mail is skipped.
func (s *IdentityService) SendVerification(ctx context.Context, user *models.User) error {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	link := s.baseURL + "/verify/" + token

	if !s.mailer.Enabled() {
		s.log.WithFields(logrus.Fields{"user_id": user.ID}).Info("smtp not configured, verification mail skipped")
		return nil
	}

	body := fmt.Sprintf("Hello %s,\n\nConfirm your email address by opening the link below. It expires in %d minutes.\n\n%s\n",
		user.Username, int(VerificationTTL.Minutes()), link)
	if err := s.mailer.Send(ctx, user.Email, "Verify your email", body); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// VerifyEmail marks the account bound to token as verified.
func (s *IdentityService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, apperrors.ErrInvalidToken)
	}
	if !user.IsVerified {
		if err := s.store.Users.MarkVerified(ctx, user.ID); err != nil {
			return nil, storeErr(err, nil)
		}
		user.IsVerified = true
	}
	return user, nil
}

func (s *IdentityService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperrors.ErrUserNotFound)
	}
	return user, nil
}

func (s *IdentityService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, storeErr(err, apperrors.ErrUserNotFound)
	}
	return user, nil
}

// FindByEmail looks an account up by email, ignoring case.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(err, apperrors.ErrUserNotFound)
	}
	return user, nil
}

// UpdateProfile changes the handle, email or avatar. Changing the email
// clears the verification flag and sends a new link.
func (s *IdentityService) UpdateProfile(ctx context.Context, user *models.User, in UpdateProfileInput) (*models.User, error) {
	updated := *user
	fields := map[string]string{}

	if username := strings.TrimSpace(in.Username); username != "" && username != user.Username {
		validateUsername(fields, username)
		updated.Username = username
	}
	emailChanged := false
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != user.Email {
		validateEmail(fields, email)
		updated.Email = email
		updated.IsVerified = false
		emailChanged = true
	}
	if len(fields) > 0 {
		return nil, apperrors.InvalidFields(fields)
	}

	if err := s.checkAvailable(ctx, fields, updated.Username, updated.Email, user.ID); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperrors.InvalidFields(fields)
	}

	if in.Avatar != nil {
		url, err := s.images.Upload(ctx, "avatars", in.Avatar.Filename, in.Avatar.Reader)
		if err != nil {
			return nil, imageErr("picture", err)
		}
		updated.ImageFile = url
	}

	if err := s.store.Users.UpdateUser(ctx, &updated); err != nil {
		return nil, storeErr(err, nil)
	}
	if emailChanged {
		if err := s.SendVerification(ctx, &updated); err != nil {
			s.log.WithFields(logrus.Fields{"user_id": updated.ID}).WithError(err).Warn("verification mail not sent")
		}
	}
	return &updated, nil
}

// UpdatePreferences replaces the user's settings after checking each enum.
func (s *IdentityService) UpdatePreferences(ctx context.Context, user *models.User, prefs models.Preferences) (*models.User, error) {
	fields := map[string]string{}
	switch prefs.MsgPreference {
	case models.MsgEveryone, models.MsgFollowers, models.MsgNone:
	default:
		fields["msg_preference"] = "must be one of everyone, followers, none"
	}
	switch prefs.ProfileVisibility {
	case models.ProfilePublic, models.ProfilePrivate:
	default:
		fields["profile_visibility"] = "must be one of public, private"
	}
	switch prefs.FeedSorting {
	case models.SortLatest, models.SortPopular:
	default:
		fields["feed_sorting"] = "must be one of latest, popular"
	}
	if prefs.AccentColor == "" {
		prefs.AccentColor = models.DefaultPreferences().AccentColor
	}
	if len(fields) > 0 {
		return nil, apperrors.InvalidFields(fields)
	}

	if err := s.store.Users.UpdatePreferences(ctx, user.ID, prefs); err != nil {
		return nil, storeErr(err, nil)
	}
	updated := *user
	updated.Preferences = prefs
	return &updated, nil
}

// Search matches usernames and post titles or bodies, ignoring case.
func (s *IdentityService) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	result := &SearchResult{Query: query, Users: []models.User{}, Posts: []models.Post{}}
	if query == "" {
		return result, nil
	}

	users, err := s.store.Users.SearchUsers(ctx, query, searchLimit)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	posts, err := s.store.Posts.SearchPosts(ctx, query, searchLimit)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	result.Users = users
	result.Posts = posts
	return result, nil
}

// TouchLastSeen records activity for the user.
func (s *IdentityService) TouchLastSeen(ctx context.Context, userID uint) error {
	return storeErr(s.store.Users.TouchLastSeen(ctx, userID), nil)
}

func (s *IdentityService) checkAvailable(ctx context.Context, fields map[string]string, username, email string, excludeID uint) error {
	taken, err := s.store.Users.UsernameExists(ctx, username, excludeID)
	if err != nil {
		return storeErr(err, nil)
	}
	if taken {
		fields["username"] = "that username is taken, please choose a different one"
	}
	taken, err = s.store.Users.EmailExists(ctx, email, excludeID)
	if err != nil {
		return storeErr(err, nil)
	}
	if taken {
		fields["email"] = "that email is already registered"
	}
	return nil
}

// uniqueHandle derives a free username from the profile name or the local
// part of the email, appending a counter on collision.
func (s *IdentityService) uniqueHandle(ctx context.Context, tx *repositories.Store, name, email string) (string, error) {
	base := handleUnsafe.ReplaceAllString(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"), "")
	if utf8.RuneCountInString(base) < minUsernameLength {
		base = handleUnsafe.ReplaceAllString(strings.SplitN(email, "@", 2)[0], "")
	}
	if utf8.RuneCountInString(base) < minUsernameLength {
		base = "user_" + base
	}
	if len(base) > maxUsernameLength-6 {
		base = base[:maxUsernameLength-6]
	}

	candidate := base
	for i := 1; ; i++ {
		taken, err := tx.Users.UsernameExists(ctx, candidate, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}

func validateUsername(fields map[string]string, username string) {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		fields["username"] = fmt.Sprintf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
}

func validateEmail(fields map[string]string, email string) {
	if len(email) > maxEmailLength {
		fields["email"] = fmt.Sprintf("email must be at most %d characters", maxEmailLength)
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["email"] = "invalid email address"
	}
}
