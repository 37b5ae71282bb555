package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jask/lovenudge/internal/inbox"
	"github.com/jask/lovenudge/internal/pushtoken"
	"github.com/jask/lovenudge/internal/relay"
	"github.com/jask/lovenudge/internal/store"
)

type memKV struct {
	data    map[string]string
	failSet bool
	// failKeys rejects writes to the listed keys only.
	failKeys map[string]bool
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("absent")
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	if m.failSet || m.failKeys[key] {
		return errors.New("read-only storage")
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type fakeRelay struct {
	users   map[string]string
	saveErr error
	getErr  error
	sendErr error

	saved []string
	sent  []relay.Notification
	calls int
}

func (f *fakeRelay) SaveUser(_ context.Context, name, token string) error {
	f.calls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, name+"="+token)
	return nil
}

func (f *fakeRelay) GetUser(_ context.Context, username string) (string, error) {
	f.calls++
	if f.getErr != nil {
		return "", f.getErr
	}
	tok, ok := f.users[username]
	if !ok {
		return "", relay.ErrUserNotFound
	}
	return tok, nil
}

func (f *fakeRelay) SendNotification(_ context.Context, n relay.Notification) error {
	f.calls++
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, n)
	return nil
}

type fixture struct {
	kv    *memKV
	store *store.Store
	relay *fakeRelay
	sess  *Session
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	kv := newMemKV()
	st := store.New(kv, nil)
	rl := &fakeRelay{users: map[string]string{"Sam": "tok-S"}}
	sess := New(st, rl, pushtoken.Static(token), Options{Logger: zaptest.NewLogger(t)})
	return &fixture{kv: kv, store: st, relay: rl, sess: sess}
}

func (f *fixture) seed(rec store.Record) {
	if rec.UserName != "" {
		f.kv.data[store.KeyUserName] = rec.UserName
	}
	if rec.LocalPushToken != "" {
		f.kv.data[store.KeyLocalPushToken] = rec.LocalPushToken
	}
	if rec.PartnerPushToken != "" {
		f.kv.data[store.KeyPartnerPushToken] = rec.PartnerPushToken
	}
}

var httpFailure = &relay.HTTPStatusError{Endpoint: "/x", StatusCode: http.StatusBadGateway}

func TestComputeInitialStep(t *testing.T) {
	cases := []struct {
		rec  store.Record
		want Step
	}{
		{store.Record{}, AwaitingName},
		{store.Record{LocalPushToken: "tok-A"}, AwaitingName},
		{store.Record{UserName: "Alex"}, AwaitingPartner},
		{store.Record{UserName: "Alex", LocalPushToken: "tok-A"}, AwaitingPartner},
		{store.Record{PartnerPushToken: "tok-S"}, Ready},
		{store.Record{UserName: "Alex", PartnerPushToken: "tok-S"}, Ready},
		{store.Record{UserName: "Alex", LocalPushToken: "tok-A", PartnerPushToken: "tok-S"}, Ready},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ComputeInitialStep(tc.rec), "%+v", tc.rec)
	}
}

func TestStepString(t *testing.T) {
	require.Equal(t, "awaiting-name", AwaitingName.String())
	require.Equal(t, "awaiting-partner", AwaitingPartner.String())
	require.Equal(t, "ready", Ready.String())
	require.Equal(t, "unknown", Step(9).String())
}

func TestLoadFromStore(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A", PartnerPushToken: "tok-S"})

	st := f.sess.Load(context.Background())
	require.Equal(t, Ready, st.Step)
	require.Equal(t, "Alex", st.UserName)
	require.Equal(t, "tok-S", st.PartnerPushToken)
	require.False(t, st.TokenChanged)
	require.Equal(t, st, f.sess.State())
}

func TestLoadFlagsRotatedToken(t *testing.T) {
	f := newFixture(t, "tok-A2")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A"})

	st := f.sess.Load(context.Background())
	require.Equal(t, AwaitingPartner, st.Step)
	require.True(t, st.TokenChanged)

	st, err := f.sess.SubmitName(context.Background(), "Alex")
	require.NoError(t, err)
	require.False(t, st.TokenChanged)
	require.Equal(t, "tok-A2", f.store.Load(context.Background()).LocalPushToken)
}

func TestLoadWithoutTokenSourceStillWorks(t *testing.T) {
	f := newFixture(t, "")
	f.seed(store.Record{UserName: "Alex"})
	st := f.sess.Load(context.Background())
	require.Equal(t, AwaitingPartner, st.Step)
	require.False(t, st.TokenChanged)
}

func TestSubmitEmptyNameIsRejected(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.sess.Load(context.Background())

	for _, name := range []string{"", "   "} {
		st, err := f.sess.SubmitName(context.Background(), name)
		require.ErrorIs(t, err, ErrEmptyName)
		require.Equal(t, AwaitingName, st.Step)
	}
	require.Empty(t, f.kv.data)
	require.Zero(t, f.relay.calls)
}

func TestSubmitNameWithoutPushToken(t *testing.T) {
	f := newFixture(t, "")
	f.sess.Load(context.Background())

	st, err := f.sess.SubmitName(context.Background(), "Alex")
	require.ErrorIs(t, err, ErrNoPushToken)
	require.ErrorIs(t, err, pushtoken.ErrUnavailable)
	require.Equal(t, AwaitingName, st.Step)
	require.Empty(t, f.kv.data)
	require.Zero(t, f.relay.calls)
}

func TestSubmitNameRelayFailureChangesNothing(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.sess.Load(context.Background())
	f.relay.saveErr = &relay.NetworkError{Endpoint: "/save-user", Err: errors.New("connection refused")}

	st, err := f.sess.SubmitName(context.Background(), "Alex")
	var nerr *relay.NetworkError
	require.ErrorAs(t, err, &nerr)
	require.Equal(t, AwaitingName, st.Step)
	require.Empty(t, f.kv.data)
}

func TestSubmitNamePersistenceFailure(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.sess.Load(context.Background())
	f.kv.failSet = true

	st, err := f.sess.SubmitName(context.Background(), "Alex")
	var perr *store.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, AwaitingName, st.Step)
}

func TestSubmitNameWriteFailureMatchesReload(t *testing.T) {
	for _, key := range []string{store.KeyLocalPushToken, store.KeyUserName} {
		t.Run(key, func(t *testing.T) {
			f := newFixture(t, "tok-A")
			f.sess.Load(context.Background())
			f.kv.failKeys = map[string]bool{key: true}

			st, err := f.sess.SubmitName(context.Background(), "Alex")
			var perr *store.PersistenceError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, key, perr.Key)

			reloaded := New(f.store, f.relay, pushtoken.Static("tok-A"), Options{}).Load(context.Background())
			require.Equal(t, reloaded, st)
			require.Equal(t, st, f.sess.State())
			require.Equal(t, AwaitingName, st.Step)
			require.Empty(t, st.UserName)
		})
	}
}

func TestReRegisterWriteFailureKeepsPersistedName(t *testing.T) {
	f := newFixture(t, "tok-B")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A"})
	f.sess.Load(context.Background())
	f.kv.failKeys = map[string]bool{store.KeyUserName: true}

	st, err := f.sess.SubmitName(context.Background(), "Alexandra")
	require.Error(t, err)
	require.Equal(t, AwaitingPartner, st.Step)
	require.Equal(t, "Alex", st.UserName)
	require.Equal(t, "tok-B", st.LocalPushToken)
	require.False(t, st.TokenChanged)
	require.Equal(t, "Alex", f.kv.data[store.KeyUserName])
}

func TestSubmitPartnerLookupSuccess(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A"})
	f.sess.Load(context.Background())

	st, err := f.sess.SubmitPartnerLookup(context.Background(), " Sam ")
	require.NoError(t, err)
	require.Equal(t, Ready, st.Step)
	require.Equal(t, "tok-S", st.PartnerPushToken)
	require.Equal(t, "tok-S", f.kv.data[store.KeyPartnerPushToken])
}

func TestSubmitPartnerLookupFailureChangesNothing(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A"})
	f.sess.Load(context.Background())
	before := f.store.Load(context.Background())
	f.relay.getErr = httpFailure

	st, err := f.sess.SubmitPartnerLookup(context.Background(), "Sam")
	var herr *relay.HTTPStatusError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, AwaitingPartner, st.Step)
	require.Equal(t, before, f.store.Load(context.Background()))
}

func TestSubmitPartnerLookupUnknownUser(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex"})
	f.sess.Load(context.Background())

	st, err := f.sess.SubmitPartnerLookup(context.Background(), "Nobody")
	require.ErrorIs(t, err, relay.ErrUserNotFound)
	require.Equal(t, AwaitingPartner, st.Step)
	require.Empty(t, st.PartnerPushToken)
}

func TestSubmitPartnerLookupRequiresRegistration(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.sess.Load(context.Background())

	_, err := f.sess.SubmitPartnerLookup(context.Background(), "Sam")
	require.ErrorIs(t, err, ErrNotRegistered)
	require.Zero(t, f.relay.calls)

	f2 := newFixture(t, "tok-A")
	f2.seed(store.Record{UserName: "Alex"})
	f2.sess.Load(context.Background())
	_, err = f2.sess.SubmitPartnerLookup(context.Background(), " ")
	require.ErrorIs(t, err, ErrEmptyPartnerName)
	require.Zero(t, f2.relay.calls)
}

func TestNewLookupReplacesPartnerToken(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", PartnerPushToken: "tok-old"})
	f.sess.Load(context.Background())

	st, err := f.sess.SubmitPartnerLookup(context.Background(), "Sam")
	require.NoError(t, err)
	require.Equal(t, "tok-S", st.PartnerPushToken)
	require.Equal(t, Ready, st.Step)
}

func TestReRegisterFromReadyStaysReady(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", PartnerPushToken: "tok-S"})
	f.sess.Load(context.Background())

	st, err := f.sess.SubmitName(context.Background(), "Alexandra")
	require.NoError(t, err)
	require.Equal(t, Ready, st.Step)
	require.Equal(t, "tok-S", st.PartnerPushToken)
}

func TestSendAffectionUsesPartnerToken(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A", PartnerPushToken: "tok-S"})
	f.sess.Load(context.Background())

	st, err := f.sess.SendAffection(context.Background(), "Hugs 🤗")
	require.NoError(t, err)
	require.Equal(t, Ready, st.Step)
	require.Equal(t, "Hugs 🤗", st.LastSent)
	require.Equal(t, []relay.Notification{{Title: "Alex", Body: "Hugs 🤗", Token: "tok-S"}}, f.relay.sent)
}

// Without a partner token the message goes to this device's own token. This
// mirrors long-standing client behaviour and is kept on purpose until product
// decides otherwise.
func TestSendAffectionFallsBackToOwnToken(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A"})
	f.sess.Load(context.Background())
	require.True(t, f.sess.State().SendsToSelf())

	_, err := f.sess.SendAffection(context.Background(), "I love you")
	require.NoError(t, err)
	require.Len(t, f.relay.sent, 1)
	require.Equal(t, "tok-A", f.relay.sent[0].Token)
}

func TestSendAffectionWithoutAnyToken(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.sess.Load(context.Background())

	_, err := f.sess.SendAffection(context.Background(), "I love you")
	require.ErrorIs(t, err, ErrNoTargetToken)
	require.Zero(t, f.relay.calls)

	_, err = f.sess.SendAffection(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendAffectionFailureKeepsState(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", PartnerPushToken: "tok-S"})
	before := f.sess.Load(context.Background())
	f.relay.sendErr = httpFailure

	st, err := f.sess.SendAffection(context.Background(), "Miss you")
	require.Error(t, err)
	require.Equal(t, before, st)
}

func TestNotificationTitle(t *testing.T) {
	kv := newMemKV()
	rl := &fakeRelay{}
	sess := New(store.New(kv, nil), rl, pushtoken.Static("tok-A"), Options{Title: "From your love"})
	kv.data[store.KeyPartnerPushToken] = "tok-S"
	sess.Load(context.Background())
	_, err := sess.SendAffection(context.Background(), "Kisses")
	require.NoError(t, err)
	require.Equal(t, "From your love", rl.sent[0].Title)

	sess = New(store.New(newMemKV(), nil), rl, pushtoken.Static("tok-A"), Options{})
	sess.state = State{Step: Ready, PartnerPushToken: "tok-S"}
	_, err = sess.SendAffection(context.Background(), "Kisses")
	require.NoError(t, err)
	require.Equal(t, defaultTitle, rl.sent[1].Title)
}

func TestResetIsIdempotent(t *testing.T) {
	f := newFixture(t, "tok-A")
	f.seed(store.Record{UserName: "Alex", LocalPushToken: "tok-A", PartnerPushToken: "tok-S"})
	f.sess.Load(context.Background())

	for i := 0; i < 2; i++ {
		st, err := f.sess.Reset(context.Background())
		require.NoError(t, err)
		require.Equal(t, State{Step: AwaitingName}, st)
		require.True(t, f.store.Load(context.Background()).IsEmpty())
	}
	require.Equal(t, AwaitingName, f.sess.Load(context.Background()).Step)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tok-A")

	st := f.sess.Load(ctx)
	require.Equal(t, AwaitingName, st.Step)

	st, err := f.sess.SubmitName(ctx, "Alex")
	require.NoError(t, err)
	require.Equal(t, AwaitingPartner, st.Step)
	require.Equal(t, store.Record{UserName: "Alex", LocalPushToken: "tok-A"}, f.store.Load(ctx))
	require.Equal(t, []string{"Alex=tok-A"}, f.relay.saved)

	st, err = f.sess.SubmitPartnerLookup(ctx, "Sam")
	require.NoError(t, err)
	require.Equal(t, Ready, st.Step)
	require.Equal(t, "tok-S", f.store.Load(ctx).PartnerPushToken)

	_, err = f.sess.SendAffection(ctx, "I love you")
	require.NoError(t, err)
	require.Equal(t, "tok-S", f.relay.sent[0].Token)
	require.Equal(t, "I love you", f.relay.sent[0].Body)

	st, err = f.sess.Reset(ctx)
	require.NoError(t, err)
	require.Equal(t, AwaitingName, st.Step)
	require.True(t, f.store.Load(ctx).IsEmpty())
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyName, "Name is required"},
		{ErrNoTargetToken, "Notification token is not available"},
		{ErrNoPushToken, "Push token is not available yet"},
		{relay.ErrUserNotFound, "No user with that name"},
		{httpFailure, "Server rejected the request (HTTP 502)"},
		{&relay.NetworkError{Endpoint: "/get-user", Err: errors.New("dial tcp: refused")}, "Could not reach the server: dial tcp: refused"},
		{&relay.DecodeError{Endpoint: "/get-user", Err: errors.New("eof")}, "Server sent an unexpected response"},
		{&store.PersistenceError{Op: "set", Key: "userName", Err: errors.New("disk full")}, "Could not save to local storage: disk full"},
		{errors.New("other"), "other"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, UserMessage(tc.err))
	}
}

func TestShortTokenKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "tok-A", shortToken("tok-A"))
	require.Equal(t, "ExponentPush…", shortToken("ExponentPushToken[abc]"))

	got := shortToken("💌💌💌💌💌💌💌💌💌💌💌💌💌💌")
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "💌💌💌💌💌💌💌💌💌💌💌💌…", got)
}

type staticInbox struct {
	n   inbox.Notification
	err error
}

func (s *staticInbox) Latest(context.Context) (inbox.Notification, error) { return s.n, s.err }

func TestLoadReadsLatestNotification(t *testing.T) {
	box := &staticInbox{n: inbox.Notification{Title: "Sam", Body: "Hugs", Data: map[string]any{"kind": "affection"}}}
	sess := New(store.New(newMemKV(), nil), &fakeRelay{}, pushtoken.Static("tok-A"), Options{Inbox: box})

	st := sess.Load(context.Background())
	require.Equal(t, "Sam", st.Latest.Title)

	box.n = inbox.Notification{Title: "Sam", Body: "Kisses"}
	st = sess.RefreshInbox(context.Background())
	require.Equal(t, "Kisses", st.Latest.Body)
	require.Equal(t, AwaitingName, st.Step)
}

func TestRefreshInboxKeepsSessionFields(t *testing.T) {
	box := &staticInbox{}
	f := newFixture(t, "tok-A")
	f.sess.inbox = box
	f.sess.Load(context.Background())
	_, err := f.sess.SubmitName(context.Background(), "Alex")
	require.NoError(t, err)

	box.err = errors.New("partial write")
	st := f.sess.RefreshInbox(context.Background())
	require.True(t, st.Latest.IsZero())
	require.Equal(t, AwaitingPartner, st.Step)
	require.Equal(t, "Alex", st.UserName)
}
