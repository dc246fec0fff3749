package accounts

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumina-lms/lumina/internal/authz"
	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeEntitlements struct {
	platform    map[int64]bool
	delegates   map[int64][]int64
	delegations [][2]int64
}

func newFakeEntitlements() *fakeEntitlements {
	return &fakeEntitlements{
		platform:  make(map[int64]bool),
		delegates: make(map[int64][]int64),
	}
}

func (f *fakeEntitlements) HasPlatformAccess(ctx context.Context, adminID int64) (bool, error) {
	return f.platform[adminID], nil
}

func (f *fakeEntitlements) HasCourseAccess(ctx context.Context, userID, courseID int64) (bool, error) {
	return false, nil
}

func (f *fakeEntitlements) ListDelegates(ctx context.Context, curatorID int64) ([]int64, error) {
	return f.delegates[curatorID], nil
}

func (f *fakeEntitlements) CreateDelegation(ctx context.Context, userID, leadID int64) error {
	f.delegations = append(f.delegations, [2]int64{userID, leadID})
	return nil
}

func (f *fakeEntitlements) TogglePlatformAccess(ctx context.Context, adminID int64) (bool, error) {
	f.platform[adminID] = !f.platform[adminID]
	return f.platform[adminID], nil
}

type fakeCourseState struct{}

func (fakeCourseState) CountOwned(ctx context.Context, adminID int64) (int, error) { return 0, nil }
func (fakeCourseState) HasOtherActive(ctx context.Context, adminID, exceptCourseID int64) (bool, error) {
	return false, nil
}

type fakeTokens struct {
	invites  map[string]int64
	codes    map[string]string
	recovery map[string]int64
	seq      int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		invites:  make(map[string]int64),
		codes:    make(map[string]string),
		recovery: make(map[string]int64),
	}
}

func (f *fakeTokens) IssueInvitation(ctx context.Context, accountID int64) (string, error) {
	f.seq++
	token := fmt.Sprintf("invite-%d", f.seq)
	f.invites[token] = accountID
	return token, nil
}

func (f *fakeTokens) ConsumeInvitation(ctx context.Context, token string) (int64, error) {
	id, ok := f.invites[token]
	if !ok {
		return 0, shared.ErrUnauthenticated
	}
	delete(f.invites, token)
	return id, nil
}

func (f *fakeTokens) IssueSecurityCode(ctx context.Context, email string) (string, error) {
	f.codes[email] = "123456"
	return "123456", nil
}

func (f *fakeTokens) ExchangeSecurityCode(ctx context.Context, email, code string, accountID int64) (string, error) {
	if f.codes[email] != code {
		return "", shared.ErrUnauthenticated
	}
	delete(f.codes, email)
	f.seq++
	token := fmt.Sprintf("recover-%d", f.seq)
	f.recovery[token] = accountID
	return token, nil
}

func (f *fakeTokens) ConsumeRecovery(ctx context.Context, token string) (int64, error) {
	id, ok := f.recovery[token]
	if !ok {
		return 0, shared.ErrUnauthenticated
	}
	delete(f.recovery, token)
	return id, nil
}

type sentMail struct {
	kind, email, payload string
}

type fakeNotifier struct {
	sent []sentMail
}

func (f *fakeNotifier) SendInvitation(ctx context.Context, email, token string) error {
	f.sent = append(f.sent, sentMail{"invitation", email, token})
	return nil
}

func (f *fakeNotifier) SendSecurityCode(ctx context.Context, email, code string) error {
	f.sent = append(f.sent, sentMail{"security_code", email, code})
	return nil
}

type listCall struct {
	adminIDs     []int64
	learnersOnly bool
	limit        int
}

type mockRepository struct {
	byID     map[int64]*Account
	byEmail  map[string]*Account
	nextID   int64
	members  []Member
	lastList *listCall
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		byID:    make(map[int64]*Account),
		byEmail: make(map[string]*Account),
		nextID:  1,
	}
}

func (m *mockRepository) add(role roles.Role, email string, createdBy *int64) *Account {
	a := &Account{ID: m.nextID, Email: email, Role: role, IsActive: true, CreatedBy: createdBy}
	m.nextID++
	m.byID[a.ID] = a
	m.byEmail[a.Email] = a
	return a
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	a, ok := m.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepository) Insert(ctx context.Context, a Account) (int64, error) {
	if _, ok := m.byEmail[a.Email]; ok {
		return 0, fmt.Errorf("email already registered: %w", shared.ErrDuplicate)
	}
	a.ID = m.nextID
	m.nextID++
	m.byID[a.ID] = &a
	m.byEmail[a.Email] = &a
	return a.ID, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, req UpdateAccountRequest) error {
	a, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	if req.FirstName != nil {
		a.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		a.LastName = *req.LastName
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	return nil
}

func (m *mockRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	a, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.PasswordHash = hash
	a.IsActive = true
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	a, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	delete(m.byEmail, a.Email)
	delete(m.byID, id)
	return nil
}

func (m *mockRepository) ListBelowSuperuser(ctx context.Context) ([]Member, error) {
	out := []Member{}
	for _, a := range m.byID {
		if a.Role != roles.Superuser {
			out = append(out, Member{ID: a.ID, Email: a.Email, Role: a.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) ListMembersForAdmins(ctx context.Context, adminIDs []int64, learnersOnly bool, limit int) ([]Member, error) {
	m.lastList = &listCall{adminIDs: adminIDs, learnersOnly: learnersOnly, limit: limit}
	out := m.members
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService() (*Service, *mockRepository, *fakeEntitlements, *fakeTokens, *fakeNotifier) {
	repo := newMockRepository()
	ents := newFakeEntitlements()
	engine := authz.NewEngine(ents, fakeCourseState{})
	tokens := newFakeTokens()
	notifier := &fakeNotifier{}
	return NewService(repo, engine, ents, tokens, notifier), repo, ents, tokens, notifier
}

func actor(id int64, role roles.Role) shared.Actor {
	return shared.Actor{ID: id, Role: role}
}

// ============================================================================
// LISTING
// ============================================================================

func TestListSuperuserSeesAllBelow(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	repo.add(roles.Superuser, "root@lumina.io", nil)
	repo.add(roles.Administrator, "admin@lumina.io", nil)
	repo.add(roles.Learner, "learner@lumina.io", nil)

	list, err := svc.List(context.Background(), actor(1, roles.Superuser))
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, m := range list {
		assert.NotEqual(t, roles.Superuser, m.Role)
	}
}

func TestListRestrictedAdministratorLearnersOnlyCapped(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	for i := 0; i < 8; i++ {
		repo.members = append(repo.members, Member{ID: int64(100 + i), Role: roles.Learner})
	}

	list, err := svc.List(context.Background(), actor(2, roles.Administrator))
	require.NoError(t, err)
	assert.Len(t, list, authz.LearnerListLimit)
	require.NotNil(t, repo.lastList)
	assert.Equal(t, []int64{2}, repo.lastList.adminIDs)
	assert.True(t, repo.lastList.learnersOnly)
	assert.Equal(t, authz.LearnerListLimit, repo.lastList.limit)
}

func TestListUnrestrictedAdministratorUnbounded(t *testing.T) {
	svc, repo, ents, _, _ := newTestService()
	ents.platform[2] = true
	for i := 0; i < 8; i++ {
		repo.members = append(repo.members, Member{ID: int64(100 + i), Role: roles.Learner})
	}

	list, err := svc.List(context.Background(), actor(2, roles.Administrator))
	require.NoError(t, err)
	assert.Len(t, list, 8)
	assert.False(t, repo.lastList.learnersOnly)
	assert.Zero(t, repo.lastList.limit)
}

// A restricted administrator's member list is invisible to their curators.
// Flipping the administrator's platform flag flips the curator's view.
func TestListCuratorFollowsAdministratorFlag(t *testing.T) {
	svc, repo, ents, _, _ := newTestService()
	curator := actor(3, roles.Curator)
	ents.delegates[3] = []int64{10, 11}
	ents.platform[10] = true
	repo.members = []Member{{ID: 100, Role: roles.Learner}, {ID: 101, Role: roles.Curator}}

	list, err := svc.List(context.Background(), curator)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, []int64{10}, repo.lastList.adminIDs)

	ents.platform[10] = false
	list, err = svc.List(context.Background(), curator)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListLearnerForbidden(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	_, err := svc.List(context.Background(), actor(4, roles.Learner))
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

// ============================================================================
// CREATE / INVITATIONS
// ============================================================================

func TestCreateStrictlyBelowOwnRank(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, actor(1, roles.Superuser), CreateAccountRequest{
		Email: "new-admin@lumina.io", FirstName: "A", LastName: "B", Role: roles.Administrator,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, actor(2, roles.Administrator), CreateAccountRequest{
		Email: "peer@lumina.io", FirstName: "A", LastName: "B", Role: roles.Administrator,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(ctx, actor(3, roles.Curator), CreateAccountRequest{
		Email: "x@lumina.io", FirstName: "A", LastName: "B", Role: roles.Learner,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateNeverMintsSuperusers(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	_, err := svc.Create(context.Background(), actor(1, roles.Superuser), CreateAccountRequest{
		Email: "root2@lumina.io", FirstName: "A", LastName: "B", Role: roles.Superuser,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateCuratorRequiresUnrestrictedAdministrator(t *testing.T) {
	svc, _, ents, _, _ := newTestService()
	ctx := context.Background()
	req := CreateAccountRequest{Email: "curator@lumina.io", FirstName: "A", LastName: "B", Role: roles.Curator}

	_, err := svc.Create(ctx, actor(2, roles.Administrator), req)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	ents.platform[2] = true
	account, err := svc.Create(ctx, actor(2, roles.Administrator), req)
	require.NoError(t, err)
	assert.Equal(t, roles.Curator, account.Role)
}

func TestCreateByAdministratorSetsDelegationAndInvites(t *testing.T) {
	svc, _, ents, tokens, notifier := newTestService()
	account, err := svc.Create(context.Background(), actor(2, roles.Administrator), CreateAccountRequest{
		Email: "learner@lumina.io", FirstName: "A", LastName: "B", Role: roles.Learner,
	})
	require.NoError(t, err)

	require.Len(t, ents.delegations, 1)
	assert.Equal(t, [2]int64{account.ID, 2}, ents.delegations[0])

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "invitation", notifier.sent[0].kind)
	assert.Equal(t, "learner@lumina.io", notifier.sent[0].email)
	assert.Equal(t, account.ID, tokens.invites[notifier.sent[0].payload])
}

func TestCreateBySuperuserSetsNoDelegation(t *testing.T) {
	svc, _, ents, _, _ := newTestService()
	_, err := svc.Create(context.Background(), actor(1, roles.Superuser), CreateAccountRequest{
		Email: "learner@lumina.io", FirstName: "A", LastName: "B", Role: roles.Learner,
	})
	require.NoError(t, err)
	assert.Empty(t, ents.delegations)
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	repo.add(roles.Learner, "taken@lumina.io", nil)

	_, err := svc.Create(context.Background(), actor(1, roles.Superuser), CreateAccountRequest{
		Email: "taken@lumina.io", FirstName: "A", LastName: "B", Role: roles.Learner,
	})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestAcceptInvitation(t *testing.T) {
	svc, repo, _, tokens, notifier := newTestService()
	ctx := context.Background()
	account, err := svc.Create(ctx, actor(1, roles.Superuser), CreateAccountRequest{
		Email: "invited@lumina.io", FirstName: "A", LastName: "B", Role: roles.Curator,
	})
	require.NoError(t, err)
	token := notifier.sent[0].payload

	require.NoError(t, svc.AcceptInvitation(ctx, AcceptInvitationRequest{Token: token, Password: "s3cret-pass"}))
	stored := repo.byID[account.ID]
	assert.True(t, stored.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))

	// Single use.
	err = svc.AcceptInvitation(ctx, AcceptInvitationRequest{Token: token, Password: "another-pass"})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	assert.Empty(t, tokens.invites)
}

// ============================================================================
// SIGN UP / RECOVERY
// ============================================================================

func TestSignUpCreatesActiveLearner(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	account, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "self@lumina.io", FirstName: "A", LastName: "B", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, roles.Learner, account.Role)
	assert.True(t, account.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("s3cret-pass")))
}

func TestRecoveryFlow(t *testing.T) {
	svc, repo, _, _, notifier := newTestService()
	ctx := context.Background()
	account := repo.add(roles.Learner, "learner@lumina.io", nil)

	require.NoError(t, svc.RequestSecurityCode(ctx, RecoverRequest{Email: "learner@lumina.io"}))
	require.Len(t, notifier.sent, 1)
	code := notifier.sent[0].payload

	_, err := svc.VerifySecurityCode(ctx, VerifyCodeRequest{Email: "learner@lumina.io", Code: "000000"})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	token, err := svc.VerifySecurityCode(ctx, VerifyCodeRequest{Email: "learner@lumina.io", Code: code})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, Password: "new-password"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.byID[account.ID].PasswordHash), []byte("new-password")))
}

func TestRecoveryUnknownEmailSilent(t *testing.T) {
	svc, _, _, _, notifier := newTestService()
	require.NoError(t, svc.RequestSecurityCode(context.Background(), RecoverRequest{Email: "ghost@lumina.io"}))
	assert.Empty(t, notifier.sent)
}

// ============================================================================
// SINGLE ACCOUNT
// ============================================================================

func TestWriteScope(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	ctx := context.Background()
	creator := int64(2)
	owned := repo.add(roles.Learner, "owned@lumina.io", &creator)
	foreign := repo.add(roles.Learner, "foreign@lumina.io", nil)
	name := "renamed"

	// Administrator writes only accounts they created.
	_, err := svc.Update(ctx, actor(2, roles.Administrator), owned.ID, UpdateAccountRequest{FirstName: &name})
	require.NoError(t, err)
	_, err = svc.Update(ctx, actor(2, roles.Administrator), foreign.ID, UpdateAccountRequest{FirstName: &name})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	// Curators never write.
	_, err = svc.Update(ctx, actor(3, roles.Curator), owned.ID, UpdateAccountRequest{FirstName: &name})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	err = svc.Delete(ctx, actor(3, roles.Curator), owned.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	// Superuser writes anything.
	require.NoError(t, svc.Delete(ctx, actor(1, roles.Superuser), foreign.ID))
}

func TestGetVisibility(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	ctx := context.Background()
	target := repo.add(roles.Learner, "learner@lumina.io", nil)

	got, err := svc.Get(ctx, actor(3, roles.Curator), target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, got.ID)

	_, err = svc.Get(ctx, actor(4, roles.Learner), target.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Get(ctx, actor(1, roles.Superuser), 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTogglePlatformAccessAlternates(t *testing.T) {
	svc, repo, ents, _, _ := newTestService()
	ctx := context.Background()
	admin := repo.add(roles.Administrator, "admin@lumina.io", nil)

	on, err := svc.TogglePlatformAccess(ctx, actor(1, roles.Superuser), admin.ID)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, ents.platform[admin.ID])

	off, err := svc.TogglePlatformAccess(ctx, actor(1, roles.Superuser), admin.ID)
	require.NoError(t, err)
	assert.False(t, off)
}

func TestTogglePlatformAccessSuperuserOnly(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	ctx := context.Background()
	admin := repo.add(roles.Administrator, "admin@lumina.io", nil)

	_, err := svc.TogglePlatformAccess(ctx, actor(2, roles.Administrator), admin.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	learner := repo.add(roles.Learner, "learner2@lumina.io", nil)
	_, err = svc.TogglePlatformAccess(ctx, actor(1, roles.Superuser), learner.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}
