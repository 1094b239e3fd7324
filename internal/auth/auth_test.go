package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medledger/m/domain"
	"medledger/m/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return New(testutil.NewStore(t), "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	sess, err := svc.Register(ctx, RegisterInput{Email: " Pharmacist@Example.com ", Password: "s3cret!", FirstName: "Ama", LastName: "Owusu"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "pharmacist@example.com", sess.User.Email)
	assert.Empty(t, sess.User.Password)
	assert.True(t, sess.User.IsActive)

	uid, err := svc.ParseToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, uid)

	_, err = svc.Register(ctx, RegisterInput{Email: "PHARMACIST@example.com", Password: "another1"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = svc.Register(ctx, RegisterInput{Email: "short@example.com", Password: "12345"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	login, err := svc.Login(ctx, "pharmacist@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "pharmacist@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sess, err := svc.Register(ctx, RegisterInput{Email: "clerk@example.com", Password: "first-pass"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, sess.User.ID, "not-it", "second-pass")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.ChangePassword(ctx, sess.User.ID, "first-pass", "tiny")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, sess.User.ID, "first-pass", "second-pass"))

	_, err = svc.Login(ctx, "clerk@example.com", "first-pass")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, "clerk@example.com", "second-pass")
	assert.NoError(t, err)
}

func TestDisabledAccount(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sess, err := svc.Register(ctx, RegisterInput{Email: "temp@example.com", Password: "password"})
	require.NoError(t, err)

	u, err := svc.store.Repos().Users.FindByID(ctx, sess.User.ID)
	require.NoError(t, err)
	u.IsActive = false
	require.NoError(t, svc.store.Repos().Users.Update(ctx, u))

	_, err = svc.Login(ctx, "temp@example.com", "password")
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ACCOUNT_DISABLED", de.Code)

	_, err = svc.Authenticate(ctx, sess.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ACCOUNT_DISABLED", de.Code)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sess, err := svc.Register(ctx, RegisterInput{Email: "active@example.com", Password: "password"})
	require.NoError(t, err)

	id, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id)

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	ghost, _, err := svc.IssueToken(9999)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, ghost)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INVALID_TOKEN", de.Code)
}

func TestParseToken(t *testing.T) {
	svc := New(nil, "test-secret", time.Hour)
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	token, exp, err := svc.IssueToken(42)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour), exp)

	uid, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
		defer func() { svc.now = func() time.Time { return issued } }()
		_, err := svc.ParseToken(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := New(nil, "other-secret", time.Hour)
		other.now = svc.now
		_, err := other.ParseToken(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: 42})
		signed, err := forged.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = svc.ParseToken(signed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ParseToken("not.a.token")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
