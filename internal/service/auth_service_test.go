package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/qcom/otpauth/internal/models"
	"github.com/qcom/otpauth/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserDirectory struct {
	mock.Mock
}

func (m *mockUserDirectory) ResolveOrCreate(ctx context.Context, mobile string) (*models.User, error) {
	args := m.Called(ctx, mobile)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type authFixture struct {
	svc    *AuthService
	users  *mockUserDirectory
	hook   *test.Hook
	issuer *TokenIssuer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	otpService := NewOTPService(repository.NewMemoryOTPStore(), FixedCodeGenerator{Code: testCode}, NewLogSender(logger), testOTPConfig(), logger)

	cfg := testJWTConfig()
	keys, err := NewTokenKeys(cfg)
	require.NoError(t, err)
	issuer := NewTokenIssuer(keys, cfg, logger)
	verifier := NewTokenVerifier(keys, cfg)

	users := &mockUserDirectory{}
	t.Cleanup(func() { users.AssertExpectations(t) })

	return &authFixture{
		svc:    NewAuthService(otpService, issuer, verifier, users, logger),
		users:  users,
		hook:   hook,
		issuer: issuer,
	}
}

func testUser() *models.User {
	return &models.User{
		ID:        testClaim.Subject,
		Mobile:    testMobile,
		CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAuthService_LoginFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.users.On("ResolveOrCreate", mock.Anything, testMobile).Return(testUser(), nil).Once()

	issued, err := f.svc.RequestOTP(ctx, testMobile)
	require.NoError(t, err)
	assert.Equal(t, testMobile, issued.Mobile)

	result, err := f.svc.VerifyOTP(ctx, testMobile, testCode)
	require.NoError(t, err)
	assert.Equal(t, testClaim.Subject, result.User.ID)

	claim, err := f.svc.Authenticate(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testClaim, *claim)

	// The code is gone after one successful use.
	_, err = f.svc.VerifyOTP(ctx, testMobile, testCode)
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_VerifyOTPFailuresCollapse(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		setup  func(f *authFixture)
		code   string
		reason error
	}{
		{
			name:   "never requested",
			code:   testCode,
			reason: models.ErrOTPNotFound,
		},
		{
			name: "wrong code",
			setup: func(f *authFixture) {
				_, err := f.svc.RequestOTP(ctx, testMobile)
				require.NoError(t, err)
			},
			code:   "9999",
			reason: models.ErrOTPMismatch,
		},
		{
			name: "expired",
			setup: func(f *authFixture) {
				_, err := f.svc.RequestOTP(ctx, testMobile)
				require.NoError(t, err)
				f.svc.otpService.now = func() time.Time { return time.Now().Add(time.Hour) }
			},
			code:   testCode,
			reason: models.ErrOTPExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.VerifyOTP(ctx, testMobile, tt.code)
			require.Equal(t, models.ErrUnauthorized, err)

			entry := f.hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			assert.ErrorIs(t, entry.Data[logrus.ErrorKey].(error), tt.reason)
		})
	}
}

func TestAuthService_VerifyOTPDirectoryFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.users.On("ResolveOrCreate", mock.Anything, testMobile).Return(nil, errors.New("table unavailable")).Once()

	_, err := f.svc.RequestOTP(ctx, testMobile)
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(ctx, testMobile, testCode)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrUnauthorized)
	assert.Contains(t, err.Error(), "failed to resolve user")
}

func TestAuthService_ConcurrentVerifySingleWinner(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.users.On("ResolveOrCreate", mock.Anything, testMobile).Return(testUser(), nil).Once()

	_, err := f.svc.RequestOTP(ctx, testMobile)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.VerifyOTP(ctx, testMobile, testCode); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestAuthService_ConcurrentWrongCodesOnRedis(t *testing.T) {
	logger, _ := test.NewNullLogger()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	otpService := NewOTPService(repository.NewRedisOTPStore(client, logger), FixedCodeGenerator{Code: testCode}, NewLogSender(logger), testOTPConfig(), logger)
	cfg := testJWTConfig()
	keys, err := NewTokenKeys(cfg)
	require.NoError(t, err)
	users := &mockUserDirectory{}
	svc := NewAuthService(otpService, NewTokenIssuer(keys, cfg, logger), NewTokenVerifier(keys, cfg), users, logger)

	ctx := context.Background()
	_, err = svc.RequestOTP(ctx, testMobile)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.VerifyOTP(ctx, testMobile, "9999")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.Equal(t, models.ErrUnauthorized, err)
	}

	// Every wrong guess counted, so the attempt cap already burned the code.
	_, err = svc.VerifyOTP(ctx, testMobile, testCode)
	require.Equal(t, models.ErrUnauthorized, err)
	users.AssertNotCalled(t, "ResolveOrCreate", mock.Anything, mock.Anything)
}

func TestAuthService_Refresh(t *testing.T) {
	f := newAuthFixture(t)

	now := time.Now()
	f.issuer.now = func() time.Time { return now }
	original, err := f.issuer.IssuePair(testClaim)
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(context.Background(), original.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, original.AccessToken, rotated.AccessToken)
	assert.NotEqual(t, original.RefreshToken, rotated.RefreshToken)

	claim, err := f.svc.Authenticate(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testClaim, *claim)
}

func TestAuthService_RefreshRejects(t *testing.T) {
	f := newAuthFixture(t)
	pair, err := f.issuer.IssuePair(testClaim)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "absent", token: ""},
		{name: "malformed", token: "definitely.not.a-token"},
		{name: "access token", token: pair.AccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Refresh(context.Background(), tt.token)
			require.Equal(t, models.ErrUnauthorized, err)
		})
	}
}

func TestAuthService_AuthenticateRejectsRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	pair, err := f.issuer.IssuePair(testClaim)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(pair.RefreshToken)
	require.Equal(t, models.ErrUnauthorized, err)
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	pair, err := f.issuer.IssuePair(testClaim)
	require.NoError(t, err)

	f.svc.Logout(context.Background(), pair.AccessToken)
	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, testClaim.Subject, entry.Data["user_id"])

	f.svc.Logout(context.Background(), "")
	assert.Equal(t, "", f.hook.LastEntry().Data["user_id"])
}
