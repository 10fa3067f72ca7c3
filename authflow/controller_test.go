package authflow_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/authflow"
	"github.com/jrsteele09/go-auth-client/flowstore"
	"github.com/jrsteele09/go-auth-client/internal/browser"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/random"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/provider"
	"github.com/jrsteele09/go-auth-client/sessionstore"
	"github.com/jrsteele09/go-auth-client/tokenexchange"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testClientID    = "test-client-1"
	testDomain      = "https://auth.example.com"
	testRedirectURI = "https://app.example.com/auth/callback"
	testLogoutURI   = "https://app.example.com/landing"
	testEmail       = "a@b.com"
	testSubject     = "user-1"
)

// fakeTokens stands in for the provider's back channel and counts every call.
type fakeTokens struct {
	tokens      tokenexchange.Tokens
	exchangeErr error
	profile     oauthmodel.Profile
	userInfoErr error

	codes        []string
	accessTokens []string
}

func (f *fakeTokens) Exchange(_ context.Context, code string) (tokenexchange.Tokens, error) {
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return tokenexchange.Tokens{}, f.exchangeErr
	}
	return f.tokens, nil
}

func (f *fakeTokens) FetchUserInfo(_ context.Context, accessToken string) (oauthmodel.Profile, error) {
	f.accessTokens = append(f.accessTokens, accessToken)
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	return f.profile, nil
}

func (f *fakeTokens) calls() int {
	return len(f.codes) + len(f.accessTokens)
}

// fakeVerifier records the nonce it was asked to check and returns an ID
// token for subject.
type fakeVerifier struct {
	subject string
	nonces  []string
	err     error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string, expectedNonce string) (oauthmodel.Profile, error) {
	f.nonces = append(f.nonces, expectedNonce)
	if f.err != nil {
		return nil, f.err
	}
	return oauthmodel.Profile{"sub": f.subject}, nil
}

// countingFlowStore counts reads of the wrapped store.
type countingFlowStore struct {
	flowstore.Store
	gets int
}

func (s *countingFlowStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.gets++
	return s.Store.Get(ctx, key)
}

// crashingSessionStore fails every write of one key, simulating a crash at that point of a commit.
type crashingSessionStore struct {
	*sessionstore.InMemoryRepo
	failKey string
}

func (s *crashingSessionStore) Set(ctx context.Context, key, value string) error {
	if key == s.failKey {
		return errors.New("disk full")
	}
	return s.InMemoryRepo.Set(ctx, key, value)
}

type testFixture struct {
	ctx        context.Context
	flows      *countingFlowStore
	memFlows   *flowstore.InMemoryRepo
	sessions   *sessionstore.InMemoryRepo
	tokens     *fakeTokens
	verifier   *fakeVerifier
	redirects  *[]string
	controller *authflow.Controller
}

type fixtureOption func(*authflow.Config, *authflow.Dependencies)

func setupTestFixture(t *testing.T, opts ...fixtureOption) *testFixture {
	t.Helper()

	endpoints, err := provider.NewEndpoints(testDomain, testClientID)
	require.NoError(t, err)

	redirects := &[]string{}
	ctx := browser.WithRedirect(context.Background(), func(target string) {
		*redirects = append(*redirects, target)
	})
	ctx = browser.WithProfile(browser.WithTab(ctx, "tab-1"), "profile-1")

	f := &testFixture{
		ctx:       ctx,
		memFlows:  flowstore.NewInMemoryRepo(time.Minute),
		sessions:  sessionstore.NewInMemoryRepo(),
		verifier:  &fakeVerifier{subject: testSubject},
		redirects: redirects,
		tokens: &fakeTokens{
			tokens:  tokenexchange.Tokens{AccessToken: "T", RefreshToken: "R", IDToken: "I", Expiry: time.Now().Add(time.Hour)},
			profile: oauthmodel.Profile{"sub": testSubject, "email": testEmail},
		},
	}
	f.flows = &countingFlowStore{Store: f.memFlows}

	cfg := authflow.Config{
		Endpoints:   endpoints,
		RedirectURI: testRedirectURI,
		LogoutURI:   testLogoutURI,
	}
	deps := authflow.Dependencies{
		FlowStore:    f.flows,
		SessionStore: f.sessions,
		Tokens:       f.tokens,
		Verifier:     f.verifier,
		Logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	f.controller, err = authflow.New(cfg, deps)
	require.NoError(t, err)
	return f
}

func (f *testFixture) lastRedirect(t *testing.T) *url.URL {
	t.Helper()
	require.NotEmpty(t, *f.redirects)
	u, err := url.Parse((*f.redirects)[len(*f.redirects)-1])
	require.NoError(t, err)
	return u
}

func (f *testFixture) storedState(t *testing.T) string {
	t.Helper()
	state, ok, err := f.memFlows.Get(f.ctx, flowstore.KeyState)
	require.NoError(t, err)
	require.True(t, ok)
	return state
}

func callback(state, code string) url.Values {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	if code != "" {
		q.Set("code", code)
	}
	return q
}

func requireFailure(t *testing.T, outcome authflow.Outcome, kind authflow.ErrorKind) *authflow.AuthError {
	t.Helper()
	authErr, failed := outcome.Failure()
	require.True(t, failed, "expected %s failure", kind)
	require.Equal(t, kind, authErr.Kind)
	require.False(t, outcome.Success())
	return authErr
}

func TestNew(t *testing.T) {
	endpoints, err := provider.NewEndpoints(testDomain, testClientID)
	require.NoError(t, err)
	deps := authflow.Dependencies{
		FlowStore:    flowstore.NewInMemoryRepo(0),
		SessionStore: sessionstore.NewInMemoryRepo(),
		Tokens:       &fakeTokens{},
	}
	cfg := authflow.Config{Endpoints: endpoints, RedirectURI: testRedirectURI, LogoutURI: testLogoutURI}

	t.Run("valid", func(t *testing.T) {
		_, err := authflow.New(cfg, deps)
		require.NoError(t, err)
	})

	t.Run("relative redirect uri", func(t *testing.T) {
		bad := cfg
		bad.RedirectURI = "/auth/callback"
		_, err := authflow.New(bad, deps)
		require.ErrorIs(t, err, oauthmodel.ErrInvalidRedirectUri)
	})

	t.Run("missing client id", func(t *testing.T) {
		bad := cfg
		bad.Endpoints.ClientID = ""
		_, err := authflow.New(bad, deps)
		require.ErrorIs(t, err, oauthmodel.ErrMissingClientID)
	})

	t.Run("missing stores", func(t *testing.T) {
		noFlows := deps
		noFlows.FlowStore = nil
		_, err := authflow.New(cfg, noFlows)
		require.Error(t, err)

		noSessions := deps
		noSessions.SessionStore = nil
		_, err = authflow.New(cfg, noSessions)
		require.Error(t, err)
	})

	t.Run("verification needs a verifier", func(t *testing.T) {
		verify := cfg
		verify.VerifyIDToken = true
		_, err := authflow.New(verify, deps)
		require.Error(t, err)
	})
}

func TestBeginSignIn(t *testing.T) {
	t.Run("stores state and redirects to authorize", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		state := f.storedState(t)
		require.Len(t, state, authflow.DefaultStateLength)
		for _, r := range state {
			require.True(t, strings.ContainsRune(random.Alphabet, r))
		}
		require.Equal(t, testEmail, f.controller.PendingEmail(f.ctx))

		u := f.lastRedirect(t)
		require.Equal(t, testDomain+provider.PathAuthorize, u.Scheme+"://"+u.Host+u.Path)
		q := u.Query()
		require.Equal(t, testClientID, q.Get("client_id"))
		require.Equal(t, "code", q.Get("response_type"))
		require.Equal(t, "email openid phone", q.Get("scope"))
		require.Equal(t, testRedirectURI, q.Get("redirect_uri"))
		require.Equal(t, state, q.Get("state"))
		require.False(t, q.Has("screen_hint"))
		require.False(t, q.Has("nonce"))
		require.Contains(t, u.RawQuery, "scope=email+openid+phone")
	})

	t.Run("each flow gets a fresh state", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		first := f.storedState(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		require.NotEqual(t, first, f.storedState(t))
	})

	t.Run("invalid email", func(t *testing.T) {
		f := setupTestFixture(t)
		for _, email := range []string{"", "   ", "not-an-email"} {
			err := f.controller.BeginSignIn(f.ctx, email)
			require.ErrorIs(t, err, autherrors.ErrInvalidInput, email)
		}
		require.Empty(t, *f.redirects)
		require.Zero(t, f.memFlows.Len(f.ctx))
	})

	t.Run("random source failure aborts", func(t *testing.T) {
		f := setupTestFixture(t, func(_ *authflow.Config, d *authflow.Dependencies) {
			d.Random = random.NewWithSource(strings.NewReader(""))
		})
		err := f.controller.BeginSignIn(f.ctx, testEmail)
		require.ErrorIs(t, err, autherrors.ErrRandomUnavailable)
		require.Empty(t, *f.redirects)
		require.Zero(t, f.memFlows.Len(f.ctx))
	})

	t.Run("no tab scope", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := browser.WithRedirect(context.Background(), func(string) {})
		err := f.controller.BeginSignIn(ctx, testEmail)
		require.ErrorIs(t, err, autherrors.ErrNoScope)
	})

	t.Run("no redirect sink", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := browser.WithTab(context.Background(), "tab-2")
		err := f.controller.BeginSignIn(ctx, testEmail)
		require.ErrorIs(t, err, autherrors.ErrUnsupported)
	})
}

func TestBeginSignUp(t *testing.T) {
	t.Run("asks for the registration page", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignUp(f.ctx, "Ada", testEmail))

		q := f.lastRedirect(t).Query()
		require.Equal(t, "signup", q.Get("screen_hint"))
		require.Equal(t, f.storedState(t), q.Get("state"))

		name, ok, err := f.memFlows.Get(f.ctx, flowstore.KeyPendingName)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Ada", name)

		kind, _, err := f.memFlows.Get(f.ctx, flowstore.KeyFlowKind)
		require.NoError(t, err)
		require.Equal(t, string(authflow.FlowSignUp), kind)
	})

	t.Run("name is required", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.controller.BeginSignUp(f.ctx, " ", testEmail)
		require.ErrorIs(t, err, autherrors.ErrInvalidInput)
		require.Empty(t, *f.redirects)
	})
}

func TestCompleteCallback(t *testing.T) {
	t.Run("sign in scenario", func(t *testing.T) {
		f := setupTestFixture(t)
		require.False(t, f.controller.IsAuthenticated(f.ctx))
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		s1 := f.storedState(t)

		outcome := f.controller.CompleteCallback(f.ctx, callback(s1, "abc"))
		require.True(t, outcome.Success())
		require.Equal(t, testEmail, outcome.Profile.Email())
		require.Equal(t, []string{"abc"}, f.tokens.codes)
		require.Equal(t, []string{"T"}, f.tokens.accessTokens)

		require.True(t, f.controller.IsAuthenticated(f.ctx))
		user, ok := f.controller.CurrentUser(f.ctx)
		require.True(t, ok)
		require.Equal(t, testEmail, user.Email())

		for key, want := range map[string]string{
			sessionstore.KeyAccessToken:   "T",
			sessionstore.KeyRefreshToken:  "R",
			sessionstore.KeyIDToken:       "I",
			sessionstore.KeyAuthenticated: "true",
		} {
			got, ok, err := f.sessions.Get(f.ctx, key)
			require.NoError(t, err)
			require.True(t, ok, key)
			require.Equal(t, want, got, key)
		}
		expiresAt, ok, err := f.sessions.Get(f.ctx, sessionstore.KeyExpiresAt)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = time.Parse(time.RFC3339, expiresAt)
		require.NoError(t, err)

		require.Zero(t, f.memFlows.Len(f.ctx))
		require.Empty(t, f.controller.PendingEmail(f.ctx))
	})

	t.Run("wrong state makes no network calls", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback("wrong", "abc"))
		authErr := requireFailure(t, outcome, authflow.CsrfMismatch)
		require.Equal(t, authflow.MsgInvalidState, authErr.Message)
		require.Zero(t, f.tokens.calls())
		require.Zero(t, f.memFlows.Len(f.ctx))
		require.False(t, f.controller.IsAuthenticated(f.ctx))
	})

	t.Run("missing state", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback("", "abc"))
		requireFailure(t, outcome, authflow.CsrfMismatch)
		require.Zero(t, f.tokens.calls())
	})

	t.Run("no flow in progress", func(t *testing.T) {
		f := setupTestFixture(t)
		outcome := f.controller.CompleteCallback(f.ctx, callback("anything", "abc"))
		requireFailure(t, outcome, authflow.CsrfMismatch)
		require.Zero(t, f.tokens.calls())
	})

	t.Run("flow from another tab", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		state := f.storedState(t)

		otherTab := browser.WithTab(f.ctx, "tab-2")
		outcome := f.controller.CompleteCallback(otherTab, callback(state, "abc"))
		requireFailure(t, outcome, authflow.CsrfMismatch)
		require.Zero(t, f.tokens.calls())
	})

	t.Run("provider error skips the state check", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		f.flows.gets = 0

		q := url.Values{"error": {"access_denied"}}
		outcome := f.controller.CompleteCallback(f.ctx, q)
		authErr := requireFailure(t, outcome, authflow.ProviderRejected)
		require.Equal(t, authflow.MsgAuthenticationFailed, authErr.Message)
		require.Zero(t, f.flows.gets)
		require.Zero(t, f.tokens.calls())
		require.Zero(t, f.memFlows.Len(f.ctx))
	})

	t.Run("provider error description", func(t *testing.T) {
		f := setupTestFixture(t)
		q := url.Values{"error": {"access_denied"}, "error_description": {"User cancelled"}, "state": {"x"}, "code": {"abc"}}
		outcome := f.controller.CompleteCallback(f.ctx, q)
		authErr := requireFailure(t, outcome, authflow.ProviderRejected)
		require.Equal(t, "User cancelled", authErr.Message)
	})

	t.Run("empty error key still counts", func(t *testing.T) {
		f := setupTestFixture(t)
		q := url.Values{"error": {""}}
		outcome := f.controller.CompleteCallback(f.ctx, q)
		requireFailure(t, outcome, authflow.ProviderRejected)
	})

	t.Run("missing code", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), ""))
		authErr := requireFailure(t, outcome, authflow.MissingCode)
		require.Equal(t, authflow.MsgNoCode, authErr.Message)
		require.Zero(t, f.tokens.calls())
		require.Zero(t, f.memFlows.Len(f.ctx))
	})

	t.Run("token exchange failure", func(t *testing.T) {
		f := setupTestFixture(t)
		cause := &tokenexchange.HTTPError{Call: "token", StatusCode: 500}
		f.tokens.exchangeErr = cause
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		authErr := requireFailure(t, outcome, authflow.TokenExchangeFailed)
		require.Equal(t, authflow.MsgTokenExchangeFailed, authErr.Message)
		require.ErrorIs(t, authErr, autherrors.ErrProviderStatus)
		require.Len(t, f.tokens.codes, 1)
		require.Empty(t, f.tokens.accessTokens)
		require.False(t, f.controller.IsAuthenticated(f.ctx))
		require.Zero(t, f.memFlows.Len(f.ctx))
	})

	t.Run("transport detail stays out of the message", func(t *testing.T) {
		for name, setup := range map[string]func(f *testFixture){
			"exchange": func(f *testFixture) {
				f.tokens.exchangeErr = errors.New(`Post "https://auth.example.com/oauth2/token": dial tcp 10.0.0.1:443: connect: connection refused`)
			},
			"userinfo": func(f *testFixture) {
				f.tokens.userInfoErr = errors.New(`Get "https://auth.example.com/oauth2/userInfo": dial tcp 10.0.0.1:443: i/o timeout`)
			},
		} {
			t.Run(name, func(t *testing.T) {
				f := setupTestFixture(t)
				setup(f)
				require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

				outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
				authErr, failed := outcome.Failure()
				require.True(t, failed)
				require.NotContains(t, authErr.Message, "dial tcp")
				require.Contains(t, []string{authflow.MsgTokenExchangeFailed, authflow.MsgUserInfoFailed}, authErr.Message)
				require.ErrorContains(t, authErr.Err, "dial tcp")
			})
		}
	})

	t.Run("missing access token", func(t *testing.T) {
		for name, fake := range map[string]*fakeTokens{
			"reported by client": {exchangeErr: autherrors.ErrMissingAccessToken},
			"empty token":        {tokens: tokenexchange.Tokens{RefreshToken: "R"}},
		} {
			t.Run(name, func(t *testing.T) {
				f := setupTestFixture(t, func(_ *authflow.Config, d *authflow.Dependencies) {
					d.Tokens = fake
				})
				require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

				outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
				authErr := requireFailure(t, outcome, authflow.TokenExchangeFailed)
				require.Equal(t, authflow.MsgMissingAccessToken, authErr.Message)
				require.Empty(t, fake.accessTokens)
			})
		}
	})

	t.Run("userinfo failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.tokens.userInfoErr = &tokenexchange.HTTPError{Call: "userinfo", StatusCode: 401}
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		requireFailure(t, outcome, authflow.UserInfoFailed)
		require.False(t, f.controller.IsAuthenticated(f.ctx))
		keys, err := f.sessions.Keys(f.ctx)
		require.NoError(t, err)
		require.Empty(t, keys)
		require.Zero(t, f.memFlows.Len(f.ctx))
	})

	t.Run("replayed callback never succeeds", func(t *testing.T) {
		for name, setup := range map[string]func(f *testFixture){
			"after success":          func(*testFixture) {},
			"after exchange failure": func(f *testFixture) { f.tokens.exchangeErr = errors.New("timeout") },
			"after userinfo failure": func(f *testFixture) { f.tokens.userInfoErr = errors.New("timeout") },
		} {
			t.Run(name, func(t *testing.T) {
				f := setupTestFixture(t)
				setup(f)
				require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
				q := callback(f.storedState(t), "abc")

				f.controller.CompleteCallback(f.ctx, q)
				require.Zero(t, f.memFlows.Len(f.ctx))
				calls := f.tokens.calls()

				outcome := f.controller.CompleteCallback(f.ctx, q)
				requireFailure(t, outcome, authflow.CsrfMismatch)
				require.Equal(t, calls, f.tokens.calls())
			})
		}
	})

	t.Run("crash before authenticated is written", func(t *testing.T) {
		store := &crashingSessionStore{InMemoryRepo: sessionstore.NewInMemoryRepo(), failKey: sessionstore.KeyAuthenticated}
		f := setupTestFixture(t, func(_ *authflow.Config, d *authflow.Dependencies) {
			d.SessionStore = store
		})
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		requireFailure(t, outcome, authflow.SessionCommitFailed)

		token, ok, err := store.Get(f.ctx, sessionstore.KeyAccessToken)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "T", token)
		require.False(t, f.controller.IsAuthenticated(f.ctx))
		_, ok = f.controller.CurrentUser(f.ctx)
		require.False(t, ok)
	})

	t.Run("crash mid commit signs out an earlier session", func(t *testing.T) {
		store := &crashingSessionStore{InMemoryRepo: sessionstore.NewInMemoryRepo()}
		f := setupTestFixture(t, func(_ *authflow.Config, d *authflow.Dependencies) {
			d.SessionStore = store
		})
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		require.True(t, f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc")).Success())
		require.True(t, f.controller.IsAuthenticated(f.ctx))

		store.failKey = sessionstore.KeyUserProfile
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "def"))
		requireFailure(t, outcome, authflow.SessionCommitFailed)
		require.False(t, f.controller.IsAuthenticated(f.ctx))
	})

	t.Run("optional tokens from an earlier session are dropped", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		require.True(t, f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc")).Success())

		f.tokens.tokens = tokenexchange.Tokens{AccessToken: "T2"}
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		require.True(t, f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "def")).Success())

		keys, err := f.sessions.Keys(f.ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{sessionstore.KeyAccessToken, sessionstore.KeyUserProfile, sessionstore.KeyAuthenticated}, keys)
	})
}

func TestCompleteCallback_VerifyIDToken(t *testing.T) {
	verify := func(c *authflow.Config, _ *authflow.Dependencies) { c.VerifyIDToken = true }

	t.Run("nonce travels from authorize to verifier", func(t *testing.T) {
		f := setupTestFixture(t, verify)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
		nonce := f.lastRedirect(t).Query().Get("nonce")
		require.Len(t, nonce, authflow.DefaultStateLength)

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		require.True(t, outcome.Success())
		require.Equal(t, []string{nonce}, f.verifier.nonces)
	})

	t.Run("verification failure", func(t *testing.T) {
		f := setupTestFixture(t, verify)
		f.verifier.err = autherrors.ErrNonceMismatch
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		authErr := requireFailure(t, outcome, authflow.TokenExchangeFailed)
		require.Equal(t, authflow.MsgInvalidIDToken, authErr.Message)
		require.ErrorIs(t, authErr, autherrors.ErrNonceMismatch)
		require.Empty(t, f.tokens.accessTokens)
		require.False(t, f.controller.IsAuthenticated(f.ctx))
	})

	t.Run("userinfo for another subject", func(t *testing.T) {
		f := setupTestFixture(t, verify)
		f.verifier.subject = "alice"
		f.tokens.profile = oauthmodel.Profile{"sub": "mallory", "email": testEmail}
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		authErr := requireFailure(t, outcome, authflow.UserInfoFailed)
		require.ErrorIs(t, authErr, autherrors.ErrSubjectMismatch)
		require.False(t, f.controller.IsAuthenticated(f.ctx))
		_, ok := f.controller.CurrentUser(f.ctx)
		require.False(t, ok)
		keys, err := f.sessions.Keys(f.ctx)
		require.NoError(t, err)
		require.Empty(t, keys)
	})

	t.Run("userinfo without subject", func(t *testing.T) {
		f := setupTestFixture(t, verify)
		f.tokens.profile = oauthmodel.Profile{"email": testEmail}
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		authErr := requireFailure(t, outcome, authflow.UserInfoFailed)
		require.ErrorIs(t, authErr, autherrors.ErrSubjectMismatch)
	})

	t.Run("matching subject signs in", func(t *testing.T) {
		f := setupTestFixture(t, verify)
		require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))

		outcome := f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc"))
		require.True(t, outcome.Success())
		user, ok := f.controller.CurrentUser(f.ctx)
		require.True(t, ok)
		require.Equal(t, testSubject, user.Subject())
	})
}

func TestSignOut(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
	require.True(t, f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc")).Success())
	require.True(t, f.controller.IsAuthenticated(f.ctx))

	require.NoError(t, f.controller.SignOut(f.ctx))
	require.False(t, f.controller.IsAuthenticated(f.ctx))
	_, ok := f.controller.CurrentUser(f.ctx)
	require.False(t, ok)

	keys, err := f.sessions.Keys(f.ctx)
	require.NoError(t, err)
	require.Empty(t, keys)

	u := f.lastRedirect(t)
	require.Equal(t, testDomain+provider.PathLogout, u.Scheme+"://"+u.Host+u.Path)
	require.Equal(t, testClientID, u.Query().Get("client_id"))
	require.Equal(t, testLogoutURI, u.Query().Get("logout_uri"))

	t.Run("when never signed in", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.controller.SignOut(f.ctx))
		require.False(t, f.controller.IsAuthenticated(f.ctx))
	})
}

func TestSessionsArePerProfile(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.controller.BeginSignIn(f.ctx, testEmail))
	require.True(t, f.controller.CompleteCallback(f.ctx, callback(f.storedState(t), "abc")).Success())

	other := browser.WithProfile(f.ctx, "profile-2")
	require.False(t, f.controller.IsAuthenticated(other))
	_, ok := f.controller.CurrentUser(other)
	require.False(t, ok)

	noProfile := browser.WithTab(context.Background(), "tab-1")
	require.False(t, f.controller.IsAuthenticated(noProfile))
}
