package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"sharedscriptures/api/internal/auth"
	"sharedscriptures/api/internal/authpw"
	"sharedscriptures/api/internal/config"
	"sharedscriptures/api/internal/email"
	"sharedscriptures/api/internal/export"
	"sharedscriptures/api/internal/highlight"
	"sharedscriptures/api/internal/objstore"
	"sharedscriptures/api/internal/search"
	"sharedscriptures/api/internal/store"
	"sharedscriptures/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	ListBooks(ctx context.Context) ([]store.Book, error)
	GetBook(ctx context.Context, bookID string) (store.Book, error)
	InsertBook(ctx context.Context, book store.Book) error
	ListChapters(ctx context.Context, bookID string) ([]store.Chapter, error)
	GetChapter(ctx context.Context, chapterID string) (store.Chapter, error)
	InsertChapter(ctx context.Context, chapter store.Chapter) error
	ListVerses(ctx context.Context, chapterID string) ([]store.Verse, error)
	GetVerse(ctx context.Context, verseID string) (store.Verse, error)
	InsertVerse(ctx context.Context, verse store.Verse) error
	HighlightsByUser(ctx context.Context, userID string) ([]store.Highlight, error)
	ReplaceUserHighlights(ctx context.Context, userID string, highlights []store.Highlight) ([]store.Highlight, error)
	DeleteHighlight(ctx context.Context, highlightID, userID string) error
	UpdateHighlightColor(ctx context.Context, highlightID, userID, color string) error
	InsertNote(ctx context.Context, note store.Note) error
	GetNote(ctx context.Context, noteID string) (store.Note, error)
	ListNotesByUser(ctx context.Context, userID string) ([]store.Note, error)
	UpdateNote(ctx context.Context, noteID, userID, content string) (bool, error)
	DeleteNote(ctx context.Context, noteID, userID string) (bool, error)
	SetNoteImage(ctx context.Context, noteID, userID, imageKey string) (bool, error)
	InsertGroup(ctx context.Context, group store.StudyGroup) error
	GetGroup(ctx context.Context, groupID string) (store.StudyGroup, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]store.StudyGroup, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	ListGroupMembers(ctx context.Context, groupID string) ([]store.GroupMember, error)
	InsertStudySession(ctx context.Context, session store.StudySession) error
	FinishStudySession(ctx context.Context, sessionID, userID string, endedAt time.Time, versesRead int) (bool, error)
	ListStudySessions(ctx context.Context, userID string, limit int) ([]store.StudySession, error)
	StudyTotalsForUser(ctx context.Context, userID string) (store.StudyTotals, error)
}

// refreshStore holds refresh tokens: Redis when configured, Postgres
// otherwise. Both stores share this surface.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// ChannelDialer opens a live propagation channel for one study session.
// onRemote is invoked for every highlight event received from other
// sessions; the returned closer tears the connection down. A nil dialer
// means sessions run without live propagation.
type ChannelDialer func(ctx context.Context, userID string, onRemote func(highlight.Highlight)) (highlight.Channel, func() error, error)

// studyRecord is one live study session: a coordinator bound to the
// session's user plus its propagation channel closer.
type studyRecord struct {
	userID       string
	coord        *highlight.Coordinator
	closeChannel func() error
	expiresAt    time.Time
}

type Service struct {
	cfg      config.Config
	store    dataStore
	refresh  refreshStore
	authpw   *authpw.Service
	search   *search.Service // may be nil
	images   *objstore.Store // may be nil
	mailer   *email.Service  // may be nil
	exporter *export.Service
	dial     ChannelDialer // may be nil

	studyTTL time.Duration
	studyMu  sync.Mutex
	studies  map[string]*studyRecord
}

func New(cfg config.Config, pg *store.PostgresStore, refresh refreshStore, searchSvc *search.Service, images *objstore.Store, mailer *email.Service, dial ChannelDialer) *Service {
	if refresh == nil {
		refresh = pg
	}
	return &Service{
		cfg:      cfg,
		store:    pg,
		refresh:  refresh,
		authpw:   authpw.NewService(pg),
		search:   searchSvc,
		images:   images,
		mailer:   mailer,
		exporter: export.NewService(&exportAdapter{store: pg}),
		dial:     dial,
		studyTTL: cfg.StudySessionTTL,
		studies:  make(map[string]*studyRecord),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds the scripture tables on first run and pushes the verse
// records to the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return err
	}
	if len(books) > 0 {
		return nil
	}

	var records []search.VerseRecord
	for _, seed := range scriptureSeeds {
		if err := s.store.InsertBook(ctx, store.Book{
			ID:           seed.ID,
			Title:        seed.Title,
			Abbreviation: seed.Abbreviation,
			SortOrder:    seed.SortOrder,
		}); err != nil {
			return err
		}
		for _, ch := range seed.Chapters {
			chapterID := fmt.Sprintf("%s-%d", seed.ID, ch.Number)
			if err := s.store.InsertChapter(ctx, store.Chapter{
				ID:     chapterID,
				BookID: seed.ID,
				Number: ch.Number,
			}); err != nil {
				return err
			}
			for i, text := range ch.Verses {
				number := ch.FirstVerse + i
				verseID := fmt.Sprintf("%s-%d", chapterID, number)
				if err := s.store.InsertVerse(ctx, store.Verse{
					ID:        verseID,
					ChapterID: chapterID,
					Number:    number,
					Text:      text,
				}); err != nil {
					return err
				}
				records = append(records, search.VerseRecord{
					ID:            verseID,
					BookID:        seed.ID,
					BookTitle:     seed.Title,
					ChapterNumber: ch.Number,
					VerseNumber:   number,
					Text:          text,
				})
			}
		}
	}

	if s.search != nil {
		s.search.IndexVerses(records)
	}
	return nil
}

// ---- auth ----

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, domainError(409, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(400, "SIGNUP_FAILED", err.Error(), nil)
	}

	if s.mailer != nil && s.mailer.IsConfigured() {
		go func(address, name string) {
			if err := s.mailer.SendWelcomeEmail(address, name); err != nil {
				log.Printf("welcome email to %s failed: %v", address, err)
			}
		}(user.Email, user.DisplayName)
	}

	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, domainError(401, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.refresh.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, domainError(401, "UNAUTHORIZED", "Refresh token invalid", nil)
		}
		return Session{}, err
	}
	if err := s.refresh.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The refresh store may only carry the user id; re-read the full row.
	if user.DisplayName == "" {
		full, err := s.store.GetUserByID(ctx, user.ID)
		if err != nil {
			return Session{}, err
		}
		user = full
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.refresh.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.refresh.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ---- scripture reading ----

func (s *Service) ListBooks(ctx context.Context) ([]map[string]any, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(books))
	for _, b := range books {
		items = append(items, map[string]any{
			"id":           b.ID,
			"title":        b.Title,
			"abbreviation": b.Abbreviation,
			"chapterCount": b.ChapterCount,
		})
	}
	return items, nil
}

func (s *Service) ListChapters(ctx context.Context, bookID string) ([]map[string]any, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(404, "NOT_FOUND", "Book not found", nil)
		}
		return nil, err
	}
	chapters, err := s.store.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(chapters))
	for _, c := range chapters {
		items = append(items, map[string]any{
			"id":         c.ID,
			"bookId":     c.BookID,
			"number":     c.Number,
			"verseCount": c.VerseCount,
		})
	}
	return items, nil
}

func (s *Service) ListVerses(ctx context.Context, chapterID string) ([]map[string]any, error) {
	if _, err := s.store.GetChapter(ctx, chapterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(404, "NOT_FOUND", "Chapter not found", nil)
		}
		return nil, err
	}
	verses, err := s.store.ListVerses(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(verses))
	for _, v := range verses {
		items = append(items, map[string]any{
			"id":        v.ID,
			"chapterId": v.ChapterID,
			"number":    v.Number,
			"text":      v.Text,
		})
	}
	return items, nil
}

// PersistedHighlights returns the user's stored highlights grouped by verse.
func (s *Service) PersistedHighlights(ctx context.Context, userID string) (map[string][]highlight.Highlight, error) {
	rows, err := s.store.HighlightsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]highlight.Highlight)
	for _, row := range rows {
		h := toCoreHighlight(row)
		grouped[h.VerseID] = append(grouped[h.VerseID], h)
	}
	return grouped, nil
}

// ---- live study sessions ----

// OpenStudy starts a live study session: one coordinator loaded with the
// user's persisted highlights, plus a propagation channel when a dialer is
// configured. Remote highlight events flow straight into the coordinator.
func (s *Service) OpenStudy(ctx context.Context, userID string) (string, error) {
	coordStore := &highlightStore{store: s.store}

	var channel highlight.Channel
	closeChannel := func() error { return nil }

	// The coordinator must exist before the channel delivers remote events,
	// so the channel target is bound after dialing.
	var ref *channelRef
	if s.dial != nil {
		ref = &channelRef{}
		channel = ref
	}

	coord := highlight.NewCoordinator(coordStore, channel, userID)

	if s.dial != nil {
		ch, closer, err := s.dial(ctx, userID, func(h highlight.Highlight) {
			coord.ApplyRemote(h)
		})
		if err != nil {
			return "", fmt.Errorf("dial propagation channel: %w", err)
		}
		ref.set(ch)
		closeChannel = closer
	}

	if err := coord.Load(ctx); err != nil {
		_ = closeChannel()
		return "", err
	}

	sessionID := util.NewID("study")
	s.studyMu.Lock()
	s.studies[sessionID] = &studyRecord{
		userID:       userID,
		coord:        coord,
		closeChannel: closeChannel,
		expiresAt:    time.Now().Add(s.studyTTL),
	}
	s.studyMu.Unlock()
	return sessionID, nil
}

// lookupStudy fetches a live session, sweeping expired records on the way.
// Expired sessions have their channels closed; ownership is checked so one
// user cannot drive another's coordinator.
func (s *Service) lookupStudy(sessionID, userID string) (*studyRecord, error) {
	now := time.Now()
	s.studyMu.Lock()
	defer s.studyMu.Unlock()
	for key, record := range s.studies {
		if now.After(record.expiresAt) {
			_ = record.closeChannel()
			delete(s.studies, key)
		}
	}
	record, ok := s.studies[sessionID]
	if !ok {
		return nil, domainError(404, "SESSION_NOT_FOUND", "Study session not found or expired", nil)
	}
	if record.userID != userID {
		return nil, domainError(403, "FORBIDDEN", "Forbidden", nil)
	}
	record.expiresAt = now.Add(s.studyTTL)
	return record, nil
}

func (s *Service) CloseStudy(ctx context.Context, sessionID, userID string) error {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return err
	}
	// Flush outstanding local changes before the session goes away.
	if record.coord.NeedsSync() {
		if err := record.coord.Persist(ctx); err != nil {
			return err
		}
	}
	_ = record.closeChannel()
	s.studyMu.Lock()
	delete(s.studies, sessionID)
	s.studyMu.Unlock()
	return nil
}

// StudyState reports the session's in-memory highlights and sync flags.
func (s *Service) StudyState(sessionID, userID string) (map[string]any, error) {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"highlights": record.coord.Local().All(),
		"needsSync":  record.coord.NeedsSync(),
		"syncing":    record.coord.Syncing(),
	}, nil
}

// StudyCreateHighlight applies a selection through the coordinator. An
// empty or inverted selection creates nothing and is reported as such, not
// as an error; a selection past the end of the verse text is rejected.
func (s *Service) StudyCreateHighlight(ctx context.Context, sessionID, userID, verseID string, a, b int, color string) (map[string]any, error) {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !highlight.ValidColor(color) {
		return nil, domainError(422, "VALIDATION_ERROR", "color must be one of the palette values", highlight.Palette)
	}
	verse, err := s.store.GetVerse(ctx, verseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(404, "NOT_FOUND", "Verse not found", nil)
		}
		return nil, err
	}
	_, end := highlight.Normalize(a, b)
	if length := len([]rune(verse.Text)); end > length {
		return nil, domainError(422, "VALIDATION_ERROR", "selection extends past the end of the verse", map[string]any{"verseLength": length})
	}
	created, ok := record.coord.Create(verseID, a, b, color)
	payload := map[string]any{"created": ok}
	if ok {
		payload["highlight"] = created
	}
	return payload, nil
}

func (s *Service) StudyRemoveHighlight(sessionID, userID, verseID string, startIndex, endIndex int) (map[string]any, error) {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return nil, err
	}
	removed := record.coord.Remove(verseID, startIndex, endIndex)
	return map[string]any{"removed": removed}, nil
}

func (s *Service) StudyRecolorHighlight(sessionID, userID, verseID string, startIndex, endIndex int, color string) (map[string]any, error) {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !highlight.ValidColor(color) {
		return nil, domainError(422, "VALIDATION_ERROR", "color must be one of the palette values", highlight.Palette)
	}
	updated := record.coord.UpdateColor(verseID, startIndex, endIndex, color)
	return map[string]any{"updated": updated}, nil
}

// StudyDeleteSingle is the responsiveness fast path for one highlight.
func (s *Service) StudyDeleteSingle(ctx context.Context, sessionID, userID string, h highlight.Highlight) error {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return err
	}
	return record.coord.DeleteSingle(ctx, h)
}

func (s *Service) StudyRecolorSingle(ctx context.Context, sessionID, userID string, h highlight.Highlight, color string) error {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return err
	}
	if !highlight.ValidColor(color) {
		return domainError(422, "VALIDATION_ERROR", "color must be one of the palette values", highlight.Palette)
	}
	return record.coord.UpdateColorSingle(ctx, h, color)
}

// StudySync persists the session's local highlights.
func (s *Service) StudySync(ctx context.Context, sessionID, userID string) (map[string]any, error) {
	record, err := s.lookupStudy(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := record.coord.Persist(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"needsSync": record.coord.NeedsSync()}, nil
}

// ---- study groups ----

func (s *Service) CreateGroup(ctx context.Context, userID, name, description string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "name is required", nil)
	}
	group := store.StudyGroup{
		ID:          util.NewID("grp"),
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     userID,
	}
	if err := s.store.InsertGroup(ctx, group); err != nil {
		return nil, err
	}
	if err := s.store.AddGroupMember(ctx, group.ID, userID); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":          group.ID,
		"name":        group.Name,
		"description": group.Description,
		"ownerId":     group.OwnerID,
	}, nil
}

func (s *Service) JoinGroup(ctx context.Context, groupID, userID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainError(404, "NOT_FOUND", "Group not found", nil)
		}
		return err
	}
	if err := s.store.AddGroupMember(ctx, groupID, userID); err != nil {
		return err
	}

	if s.mailer != nil && s.mailer.IsConfigured() && group.OwnerID != userID {
		owner, ownerErr := s.store.GetUserByID(ctx, group.OwnerID)
		member, memberErr := s.store.GetUserByID(ctx, userID)
		if ownerErr == nil && memberErr == nil {
			go func() {
				if err := s.mailer.SendGroupJoinEmail(owner.Email, owner.DisplayName, member.DisplayName, group.Name); err != nil {
					log.Printf("group join email for %s failed: %v", group.ID, err)
				}
			}()
		}
	}
	return nil
}

func (s *Service) LeaveGroup(ctx context.Context, groupID, userID string) error {
	return s.store.RemoveGroupMember(ctx, groupID, userID)
}

func (s *Service) MyGroups(ctx context.Context, userID string) ([]map[string]any, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		items = append(items, map[string]any{
			"id":          g.ID,
			"name":        g.Name,
			"description": g.Description,
			"ownerId":     g.OwnerID,
		})
	}
	return items, nil
}

func (s *Service) GroupMembers(ctx context.Context, groupID, userID string) ([]map[string]any, error) {
	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	isMember := false
	for _, m := range members {
		if m.UserID == userID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, domainError(403, "FORBIDDEN", "Forbidden", nil)
	}
	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		items = append(items, map[string]any{
			"userId":      m.UserID,
			"displayName": m.DisplayName,
			"joinedAt":    m.JoinedAt,
		})
	}
	return items, nil
}

// ---- study log (timed reading sessions) ----

func (s *Service) StartStudyLog(ctx context.Context, userID string) (map[string]any, error) {
	session := store.StudySession{
		ID:        util.NewID("sess"),
		UserID:    userID,
		StartedAt: time.Now(),
	}
	if err := s.store.InsertStudySession(ctx, session); err != nil {
		return nil, err
	}
	return map[string]any{"id": session.ID, "startedAt": session.StartedAt}, nil
}

func (s *Service) FinishStudyLog(ctx context.Context, sessionID, userID string, versesRead int) error {
	if versesRead < 0 {
		return domainError(422, "VALIDATION_ERROR", "versesRead must not be negative", nil)
	}
	ok, err := s.store.FinishStudySession(ctx, sessionID, userID, time.Now(), versesRead)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(404, "NOT_FOUND", "Study session not found", nil)
	}
	return nil
}

func (s *Service) StudyStats(ctx context.Context, userID string) (map[string]any, error) {
	totals, err := s.store.StudyTotalsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListStudySessions(ctx, userID, 10)
	if err != nil {
		return nil, err
	}
	sessions := make([]map[string]any, 0, len(recent))
	for _, r := range recent {
		item := map[string]any{
			"id":         r.ID,
			"startedAt":  r.StartedAt,
			"versesRead": r.VersesRead,
		}
		if r.EndedAt != nil {
			item["endedAt"] = *r.EndedAt
		}
		sessions = append(sessions, item)
	}
	return map[string]any{
		"sessions":     totals.Sessions,
		"minutes":      totals.Minutes,
		"versesRead":   totals.VersesRead,
		"distinctDays": totals.DistinctDays,
		"recent":       sessions,
	}, nil
}

// ---- notes ----

func (s *Service) CreateNote(ctx context.Context, userID, verseID, content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "content is required", nil)
	}
	if _, err := s.store.GetVerse(ctx, verseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(404, "NOT_FOUND", "Verse not found", nil)
		}
		return nil, err
	}
	note := store.Note{
		ID:      util.NewID("note"),
		VerseID: verseID,
		UserID:  userID,
		Content: content,
	}
	if err := s.store.InsertNote(ctx, note); err != nil {
		return nil, err
	}
	return map[string]any{"id": note.ID, "verseId": note.VerseID, "content": note.Content}, nil
}

func (s *Service) ListNotes(ctx context.Context, userID string) ([]map[string]any, error) {
	notes, err := s.store.ListNotesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		item := map[string]any{
			"id":        n.ID,
			"verseId":   n.VerseID,
			"content":   n.Content,
			"createdAt": n.CreatedAt,
			"updatedAt": n.UpdatedAt,
		}
		if n.ImageKey != "" && s.images != nil {
			url, err := s.images.PresignGet(ctx, n.ImageKey, 15*time.Minute)
			if err == nil {
				item["imageUrl"] = url
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) UpdateNote(ctx context.Context, noteID, userID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return domainError(422, "VALIDATION_ERROR", "content is required", nil)
	}
	ok, err := s.store.UpdateNote(ctx, noteID, userID, content)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(404, "NOT_FOUND", "Note not found", nil)
	}
	return nil
}

func (s *Service) DeleteNote(ctx context.Context, noteID, userID string) error {
	ok, err := s.store.DeleteNote(ctx, noteID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(404, "NOT_FOUND", "Note not found", nil)
	}
	return nil
}

// AttachNoteImage uploads an image to the object store and links it to the
// note. The key embeds the note id so re-uploads overwrite.
func (s *Service) AttachNoteImage(ctx context.Context, noteID, userID string, body io.Reader, size int64, contentType string) (map[string]any, error) {
	if s.images == nil {
		return nil, domainError(503, "IMAGES_UNAVAILABLE", "Image storage not configured", nil)
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(404, "NOT_FOUND", "Note not found", nil)
		}
		return nil, err
	}
	if note.UserID != userID {
		return nil, domainError(403, "FORBIDDEN", "Forbidden", nil)
	}

	key := fmt.Sprintf("notes/%s/image", noteID)
	if err := s.images.Put(ctx, key, body, size, contentType); err != nil {
		return nil, err
	}
	if _, err := s.store.SetNoteImage(ctx, noteID, userID, key); err != nil {
		return nil, err
	}
	url, err := s.images.PresignGet(ctx, key, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	return map[string]any{"imageUrl": url}, nil
}

// ---- search ----

func (s *Service) SearchVerses(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(503, "SEARCH_UNAVAILABLE", "Search not configured", nil)
	}
	return s.search.Search(q), nil
}

// ---- export ----

func (s *Service) ExportChapter(ctx context.Context, userID, chapterID string, format export.Format, includeNotes bool) (*export.Result, error) {
	return s.exporter.Export(ctx, export.Request{
		UserID:       userID,
		ChapterID:    chapterID,
		Format:       format,
		IncludeNotes: includeNotes,
	})
}

// ---- adapters ----

// channelRef is a propagation channel whose target is bound after the
// coordinator is constructed. Sends before binding are silently dropped,
// which matches the channel's best-effort contract.
type channelRef struct {
	mu     sync.Mutex
	target highlight.Channel
}

func (c *channelRef) set(target highlight.Channel) {
	c.mu.Lock()
	c.target = target
	c.mu.Unlock()
}

func (c *channelRef) Send(h highlight.Highlight) error {
	c.mu.Lock()
	target := c.target
	c.mu.Unlock()
	if target == nil {
		return nil
	}
	return target.Send(h)
}

// highlightStore adapts the Postgres store to the coordinator's
// document-store contract, converting between the storage rows and the
// core's highlight values.
type highlightStore struct {
	store dataStore
}

func (a *highlightStore) HighlightsByUser(ctx context.Context, userID string) ([]highlight.Highlight, error) {
	rows, err := a.store.HighlightsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]highlight.Highlight, 0, len(rows))
	for _, row := range rows {
		items = append(items, toCoreHighlight(row))
	}
	return items, nil
}

func (a *highlightStore) ReplaceUserHighlights(ctx context.Context, userID string, highlights []highlight.Highlight) ([]highlight.Highlight, error) {
	rows := make([]store.Highlight, 0, len(highlights))
	for _, h := range highlights {
		rows = append(rows, toStoreHighlight(h))
	}
	inserted, err := a.store.ReplaceUserHighlights(ctx, userID, rows)
	if err != nil {
		return nil, err
	}
	items := make([]highlight.Highlight, 0, len(inserted))
	for _, row := range inserted {
		items = append(items, toCoreHighlight(row))
	}
	return items, nil
}

func (a *highlightStore) DeleteHighlight(ctx context.Context, highlightID, userID string) error {
	return a.store.DeleteHighlight(ctx, highlightID, userID)
}

func (a *highlightStore) UpdateHighlightColor(ctx context.Context, highlightID, userID, color string) error {
	return a.store.UpdateHighlightColor(ctx, highlightID, userID, color)
}

func toCoreHighlight(row store.Highlight) highlight.Highlight {
	return highlight.Highlight{
		ID:         row.ID,
		VerseID:    row.VerseID,
		StartIndex: row.StartIndex,
		EndIndex:   row.EndIndex,
		Color:      row.Color,
		UserID:     row.UserID,
	}
}

func toStoreHighlight(h highlight.Highlight) store.Highlight {
	return store.Highlight{
		ID:         h.ID,
		VerseID:    h.VerseID,
		StartIndex: h.StartIndex,
		EndIndex:   h.EndIndex,
		Color:      h.Color,
		UserID:     h.UserID,
	}
}

// exportAdapter feeds the export service from the Postgres store.
type exportAdapter struct {
	store dataStore
}

func (a *exportAdapter) GetChapter(ctx context.Context, chapterID string) (export.ChapterInfo, error) {
	chapter, err := a.store.GetChapter(ctx, chapterID)
	if err != nil {
		return export.ChapterInfo{}, err
	}
	book, err := a.store.GetBook(ctx, chapter.BookID)
	if err != nil {
		return export.ChapterInfo{}, err
	}
	return export.ChapterInfo{
		ID:        chapter.ID,
		BookTitle: book.Title,
		Number:    chapter.Number,
	}, nil
}

func (a *exportAdapter) ListVerses(ctx context.Context, chapterID string) ([]export.VerseInfo, error) {
	verses, err := a.store.ListVerses(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	items := make([]export.VerseInfo, 0, len(verses))
	for _, v := range verses {
		items = append(items, export.VerseInfo{ID: v.ID, Number: v.Number, Text: v.Text})
	}
	return items, nil
}

func (a *exportAdapter) HighlightSpans(ctx context.Context, userID, chapterID string) (map[string][]export.Span, error) {
	verses, err := a.store.ListVerses(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	inChapter := make(map[string]bool, len(verses))
	for _, v := range verses {
		inChapter[v.ID] = true
	}

	rows, err := a.store.HighlightsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	spans := make(map[string][]export.Span)
	for _, row := range rows {
		if !inChapter[row.VerseID] {
			continue
		}
		spans[row.VerseID] = append(spans[row.VerseID], export.Span{
			Start: row.StartIndex,
			End:   row.EndIndex,
			Color: row.Color,
		})
	}
	return spans, nil
}

func (a *exportAdapter) ListNotes(ctx context.Context, userID, chapterID string) ([]export.NoteInfo, error) {
	verses, err := a.store.ListVerses(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	verseNumber := make(map[string]int, len(verses))
	for _, v := range verses {
		verseNumber[v.ID] = v.Number
	}

	notes, err := a.store.ListNotesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]export.NoteInfo, 0)
	for _, n := range notes {
		number, ok := verseNumber[n.VerseID]
		if !ok {
			continue
		}
		items = append(items, export.NoteInfo{VerseNumber: number, Content: n.Content})
	}
	return items, nil
}

func (a *exportAdapter) GetReaderName(ctx context.Context, userID string) (string, error) {
	user, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.DisplayName, nil
}
