package dal

import (
	"database/sql"
	"embed"
	"errors"
	"fedipress/shared"
	"fmt"
	"github.com/mattn/go-sqlite3"
	"sync"
	"time"
)

const schemaVer = 1

//go:embed scripts/*
var scripts embed.FS

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_repo.go -package mocks fedipress/dal IRepo

type IRepo interface {
	InitUpdateDb()
	GetNextId() uint64
	AddActorIfNotExist(actor *Actor, privKey string) (isNew bool, err error)
	DoesActorExist(handle string) (bool, error)
	GetActor(handle string) (*Actor, error)
	GetPrivKey(handle string) (string, error)
	SetActorKeysIfAbsent(handle, pubKey, privKey string) (updated bool, err error)
	GetFollowerCount(handle string) (uint, error)
	GetTotalFollowerCount() (int, error)
	GetFollowers(handle string) ([]*FollowerInfo, error)
	AddFollower(handle string, flwr *FollowerInfo) error
	RemoveFollower(handle, followerUserUrl string) error
	RemoveFollowerByUrl(followerUserUrl string) error
	GetOutdatedFollowers(lastCheckedBefore time.Time) ([]*FollowerInfo, error)
	GetFaultyFollowers(errorThreshold int) ([]*FollowerInfo, error)
	UpdateFollowerChecked(id int, userInbox, sharedInbox, name string, when time.Time) error
	BumpFollowerError(id int, when time.Time) error
	ResetFollowerError(id int, when time.Time) error
	DeleteFollowerById(id int) error
	MarkActivityHandled(id string, when time.Time) (alreadyHandled bool, err error)
	AddInteractionIfNew(i *Interaction) (isNew bool, err error)
	GetInteractionByRef(ref string) (*Interaction, error)
	UpdateInteractionContent(objectUrl, content string, contentHash int64) error
	DeleteInteractionByRef(ref string) error
	AddFederatedContentIfNew(fc *FederatedContent) (isNew bool, err error)
	GetFederatedContentCount() (uint, error)
	GetFederatedContent(contentId string) (*FederatedContent, error)
	GetFederatedContentByUrl(contentUrl string) (*FederatedContent, error)
	DeleteFederatedContent(contentId string) error
	AddJob(job *Job) error
	GetDueJobs(due time.Time, maxCount int) ([]*Job, error)
	DeleteJob(id string) error
	HasPendingJob(name string) (bool, error)
	AcquireBatchLock(now time.Time, expiry time.Duration) (bool, error)
	ReleaseBatchLock() error
}

type Repo struct {
	cfg    *shared.Config
	logger shared.ILogger
	db     *sql.DB
	muDb   sync.RWMutex
	muId   sync.Mutex
	nextId uint64
}

func NewRepo(cfg *shared.Config, logger shared.ILogger) IRepo {

	var err error
	var db *sql.DB

	// https://phiresky.github.io/blog/2020/sqlite-performance-tuning/
	// _synchronous=1 is "normal"
	cstr := "file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_synchronous=1&_busy_timeout=5000"
	db, err = sql.Open("sqlite3", fmt.Sprintf(cstr, cfg.DbFile))
	if err != nil {
		logger.Errorf("Failed to open/create DB file: %s: %v", cfg.DbFile, err)
		panic(err)
	}

	repo := Repo{
		cfg:    cfg,
		logger: logger,
		db:     db,
		nextId: uint64(time.Now().UnixNano()),
	}

	return &repo
}

func (repo *Repo) GetNextId() uint64 {
	repo.muId.Lock()
	res := repo.nextId + 1
	repo.nextId = res
	repo.muId.Unlock()
	return res
}

func (repo *Repo) InitUpdateDb() {

	dbVer := 0
	sysParamsExists := false
	var err error
	var rows *sql.Rows

	rows, err = repo.db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name='sys_params'")
	if err != nil {
		repo.logger.Errorf("Failed to check if 'sys_params' table exists: %v", err)
		panic(err)
	}
	for rows.Next() {
		sysParamsExists = true
	}
	_ = rows.Close()
	if !sysParamsExists {
		repo.logger.Printf("Database appears to be empty; current schema version is %d", schemaVer)
	} else {
		row := repo.db.QueryRow("SELECT val FROM sys_params WHERE name='schema_ver'")
		if err = row.Scan(&dbVer); err != nil {
			repo.logger.Errorf("Failed to query schema version: %v", err)
			panic(err)
		}
		repo.logger.Printf("Database is at version %d; current schema version is %d", dbVer, schemaVer)
	}
	for i := dbVer; i < schemaVer; i += 1 {
		nextVer := i + 1
		fn := fmt.Sprintf("scripts/create-%02d.sql", nextVer)
		repo.logger.Printf("Running %s", fn)
		var sqlBytes []byte
		if sqlBytes, err = scripts.ReadFile(fn); err != nil {
			repo.logger.Errorf("Failed to read init script %s: %v", fn, err)
			panic(err)
		}
		sqlStr := string(sqlBytes)
		if _, err = repo.db.Exec(sqlStr); err != nil {
			repo.logger.Errorf("Failed to execute init script %s: %v", fn, err)
			panic(err)
		}
		_, err = repo.db.Exec("UPDATE sys_params SET val=? WHERE name='schema_ver'", nextVer)
		if err != nil {
			repo.logger.Errorf("Failed to update schema_ver to %d: %v", i, err)
			panic(err)
		}
	}

	if dbVer == 0 {
		repo.mustAddBuiltInActors()
	}
}

func (repo *Repo) mustAddBuiltInActors() {

	idb := shared.IdBuilder{Host: repo.cfg.Host}

	if repo.cfg.Blog != nil {
		_, err := repo.db.Exec(`INSERT INTO actors
			(created_at, actor_type, user_url, handle, name, summary, pubkey, privkey)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			repo.cfg.Blog.Published, "blog", idb.UserUrl(repo.cfg.Blog.User),
			repo.cfg.Blog.User, repo.cfg.Blog.Name, repo.cfg.Blog.Summary,
			repo.cfg.Blog.PubKey, repo.cfg.Blog.PrivKey)
		if err != nil {
			repo.logger.Errorf("Failed to add blog actor '%s': %v", repo.cfg.Blog.User, err)
			panic(err)
		}
	}

	// Application actor; its key pair is generated lazily on first use.
	_, err := repo.db.Exec(`INSERT INTO actors
		(created_at, actor_type, user_url, handle, name)
		VALUES(?, ?, ?, ?, ?)`,
		time.Now().UTC(), "application", idb.AppActorUrl(),
		shared.AppActorHandle, repo.cfg.Host)
	if err != nil {
		repo.logger.Errorf("Failed to add application actor: %v", err)
		panic(err)
	}
}

func isDuplicateKeyErr(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		if sqliteErr.Code == 19 && sqliteErr.ExtendedCode == 2067 {
			return true
		}
	}
	return false
}

func (repo *Repo) AddActorIfNotExist(actor *Actor, privKey string) (isNew bool, err error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	isNew = true
	_, err = repo.db.Exec(`INSERT INTO actors
		(created_at, actor_type, user_url, handle, name, summary, enabled, pubkey, privkey)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		actor.CreatedAt, actor.ActorType, actor.UserUrl, actor.Handle, actor.Name, actor.Summary,
		actor.Enabled, actor.PubKey, privKey)
	if err == nil {
		return
	}
	// Duplicate key: actor with this handle already exists
	if isDuplicateKeyErr(err) {
		isNew = false
		err = nil
	}
	return
}

func (repo *Repo) DoesActorExist(handle string) (bool, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT COUNT(*) FROM actors WHERE handle=?`, handle)
	var err error
	var count int
	if err = row.Scan(&count); err != nil {
		return false, err
	}
	return count != 0, nil
}

func (repo *Repo) GetActor(handle string) (*Actor, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	return repo.getActor(handle)
}

func (repo *Repo) getActor(handle string) (*Actor, error) {

	row := repo.db.QueryRow(
		`SELECT id, created_at, actor_type, user_url, handle, name, summary, enabled, pubkey
		FROM actors WHERE handle=?`, handle)
	var err error
	var res Actor
	err = row.Scan(&res.Id, &res.CreatedAt, &res.ActorType, &res.UserUrl, &res.Handle, &res.Name,
		&res.Summary, &res.Enabled, &res.PubKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		} else {
			return nil, err
		}
	}
	return &res, nil
}

func (repo *Repo) GetPrivKey(handle string) (string, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT privkey FROM actors WHERE handle=?`, handle)
	var err error
	var res string
	err = row.Scan(&res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		} else {
			return "", err
		}
	}
	return res, nil
}

// SetActorKeysIfAbsent stores the pair only if the actor has none yet.
// Returns false if a pair was already present; the stored pair wins.
func (repo *Repo) SetActorKeysIfAbsent(handle, pubKey, privKey string) (updated bool, err error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	res, err := repo.db.Exec(`UPDATE actors SET pubkey=?, privkey=? WHERE handle=? AND privkey=''`,
		pubKey, privKey, handle)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected != 0, nil
}

func (repo *Repo) GetFollowerCount(handle string) (uint, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT COUNT(*) FROM followers JOIN actors
		ON followers.account_id=actors.id AND actors.handle=?`, handle)
	var err error
	var count int
	if err = row.Scan(&count); err != nil {
		return 0, err
	}
	return uint(count), nil
}

func (repo *Repo) GetTotalFollowerCount() (int, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT COUNT(*) FROM followers`)
	var err error
	var count int
	if err = row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (repo *Repo) GetFollowers(handle string) ([]*FollowerInfo, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	// Newest first; ties broken by insertion order
	query := `SELECT followers.id, followers.added_at, followers.request_id, followers.user_url,
			followers.handle, followers.host, followers.name, followers.user_inbox,
			followers.shared_inbox, followers.error_count, followers.last_checked
		FROM followers JOIN actors ON followers.account_id=actors.id AND actors.handle=?
		ORDER BY followers.id DESC`
	rows, err := repo.db.Query(query, handle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readFollowers(rows, false)
}

func readFollowers(rows *sql.Rows, withLocalHandle bool) ([]*FollowerInfo, error) {
	var err error
	res := make([]*FollowerInfo, 0)
	for rows.Next() {
		fi := FollowerInfo{}
		if withLocalHandle {
			err = rows.Scan(&fi.Id, &fi.LocalHandle, &fi.AddedAt, &fi.RequestId, &fi.UserUrl,
				&fi.Handle, &fi.Host, &fi.Name, &fi.UserInbox, &fi.SharedInbox,
				&fi.ErrorCount, &fi.LastChecked)
		} else {
			err = rows.Scan(&fi.Id, &fi.AddedAt, &fi.RequestId, &fi.UserUrl,
				&fi.Handle, &fi.Host, &fi.Name, &fi.UserInbox, &fi.SharedInbox,
				&fi.ErrorCount, &fi.LastChecked)
		}
		if err != nil {
			return nil, err
		}
		res = append(res, &fi)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (repo *Repo) AddFollower(handle string, flwr *FollowerInfo) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	row := repo.db.QueryRow(`SELECT id FROM actors WHERE handle=?`, handle)
	var err error
	var accountId int
	if err = row.Scan(&accountId); err != nil {
		return err
	}
	// Re-adding updates the record in place; added_at and the owning
	// account_id are never overwritten.
	_, err = repo.db.Exec(`INSERT INTO followers
			(account_id, added_at, request_id, user_url, handle, host, name, user_inbox, shared_inbox, error_count, last_checked)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (account_id, user_url) DO UPDATE SET
			request_id=excluded.request_id, handle=excluded.handle, host=excluded.host,
			name=excluded.name, user_inbox=excluded.user_inbox, shared_inbox=excluded.shared_inbox`,
		accountId, flwr.AddedAt, flwr.RequestId, flwr.UserUrl, flwr.Handle, flwr.Host,
		flwr.Name, flwr.UserInbox, flwr.SharedInbox, flwr.LastChecked)
	if err != nil {
		return err
	}
	return nil
}

func (repo *Repo) RemoveFollower(handle, followerUserUrl string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	row := repo.db.QueryRow(`SELECT id FROM actors WHERE handle=?`, handle)
	var err error
	var accountId int
	if err = row.Scan(&accountId); err != nil {
		return err
	}
	_, err = repo.db.Exec(`DELETE FROM followers WHERE account_id=? AND user_url=?`,
		accountId, followerUserUrl)
	if err != nil {
		return err
	}
	return nil
}

func (repo *Repo) RemoveFollowerByUrl(followerUserUrl string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`DELETE FROM followers WHERE user_url=?`, followerUserUrl)
	return err
}

func (repo *Repo) GetOutdatedFollowers(lastCheckedBefore time.Time) ([]*FollowerInfo, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	query := `SELECT followers.id, actors.handle, followers.added_at, followers.request_id,
			followers.user_url, followers.handle, followers.host, followers.name,
			followers.user_inbox, followers.shared_inbox, followers.error_count, followers.last_checked
		FROM followers JOIN actors ON followers.account_id=actors.id
		WHERE followers.last_checked<?
		ORDER BY followers.last_checked ASC`
	rows, err := repo.db.Query(query, lastCheckedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readFollowers(rows, true)
}

func (repo *Repo) GetFaultyFollowers(errorThreshold int) ([]*FollowerInfo, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	query := `SELECT followers.id, actors.handle, followers.added_at, followers.request_id,
			followers.user_url, followers.handle, followers.host, followers.name,
			followers.user_inbox, followers.shared_inbox, followers.error_count, followers.last_checked
		FROM followers JOIN actors ON followers.account_id=actors.id
		WHERE followers.error_count>=?`
	rows, err := repo.db.Query(query, errorThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readFollowers(rows, true)
}

func (repo *Repo) UpdateFollowerChecked(id int, userInbox, sharedInbox, name string, when time.Time) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE followers
		SET user_inbox=?, shared_inbox=?, name=?, error_count=0, last_checked=?
		WHERE id=?`,
		userInbox, sharedInbox, name, when, id)
	return err
}

func (repo *Repo) BumpFollowerError(id int, when time.Time) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE followers SET error_count=error_count+1, last_checked=? WHERE id=?`,
		when, id)
	return err
}

func (repo *Repo) ResetFollowerError(id int, when time.Time) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE followers SET error_count=0, last_checked=? WHERE id=?`,
		when, id)
	return err
}

func (repo *Repo) DeleteFollowerById(id int) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`DELETE FROM followers WHERE id=?`, id)
	return err
}

func (repo *Repo) MarkActivityHandled(id string, when time.Time) (alreadyHandled bool, err error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	alreadyHandled = false
	err = nil

	_, err = repo.db.Exec(`INSERT INTO handled_activities VALUES (?, ?)`, id, when)

	if err == nil {
		return
	}

	// Duplicate key: activity was handled before
	if isDuplicateKeyErr(err) {
		alreadyHandled = true
		err = nil
	}

	return
}

func (repo *Repo) AddInteractionIfNew(i *Interaction) (isNew bool, err error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	isNew = true
	_, err = repo.db.Exec(`INSERT INTO interactions
			(created_at, kind, activity_id, object_url, source_url, content_hash, author_url, author_name, content_url, content)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.CreatedAt, i.Kind, i.ActivityId, i.ObjectUrl, i.SourceUrl, i.ContentHash,
		i.AuthorUrl, i.AuthorName, i.ContentUrl, i.Content)
	if err == nil {
		return
	}
	// Duplicate key: same activity id, or same source+content
	if isDuplicateKeyErr(err) {
		isNew = false
		err = nil
	}
	return
}

func (repo *Repo) GetInteractionByRef(ref string) (*Interaction, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(
		`SELECT id, created_at, kind, activity_id, object_url, source_url, content_hash,
			author_url, author_name, content_url, content
		FROM interactions WHERE activity_id=? OR object_url=?`, ref, ref)
	var err error
	var res Interaction
	err = row.Scan(&res.Id, &res.CreatedAt, &res.Kind, &res.ActivityId, &res.ObjectUrl,
		&res.SourceUrl, &res.ContentHash, &res.AuthorUrl, &res.AuthorName, &res.ContentUrl, &res.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		} else {
			return nil, err
		}
	}
	return &res, nil
}

func (repo *Repo) UpdateInteractionContent(objectUrl, content string, contentHash int64) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE interactions SET content=?, content_hash=? WHERE object_url=?`,
		content, contentHash, objectUrl)
	return err
}

func (repo *Repo) DeleteInteractionByRef(ref string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`DELETE FROM interactions WHERE activity_id=? OR object_url=?`, ref, ref)
	return err
}

func (repo *Repo) AddFederatedContentIfNew(fc *FederatedContent) (isNew bool, err error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	isNew = true
	_, err = repo.db.Exec(`INSERT INTO federated_content (content_id, content_url, activity_id, federated_at)
		VALUES(?, ?, ?, ?)`,
		fc.ContentId, fc.ContentUrl, fc.ActivityId, fc.FederatedAt)
	if err == nil {
		return
	}
	// Duplicate key: content was federated before
	if isDuplicateKeyErr(err) {
		isNew = false
		err = nil
	}
	return
}

func (repo *Repo) GetFederatedContentCount() (uint, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT COUNT(*) FROM federated_content`)
	var err error
	var count int
	if err = row.Scan(&count); err != nil {
		return 0, err
	}
	return uint(count), nil
}

func (repo *Repo) GetFederatedContent(contentId string) (*FederatedContent, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(
		`SELECT content_id, content_url, activity_id, federated_at FROM federated_content WHERE content_id=?`,
		contentId)
	return readFederatedContent(row)
}

func (repo *Repo) GetFederatedContentByUrl(contentUrl string) (*FederatedContent, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(
		`SELECT content_id, content_url, activity_id, federated_at FROM federated_content WHERE content_url=?`,
		contentUrl)
	return readFederatedContent(row)
}

func readFederatedContent(row *sql.Row) (*FederatedContent, error) {
	var err error
	var res FederatedContent
	err = row.Scan(&res.ContentId, &res.ContentUrl, &res.ActivityId, &res.FederatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		} else {
			return nil, err
		}
	}
	return &res, nil
}

func (repo *Repo) DeleteFederatedContent(contentId string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`DELETE FROM federated_content WHERE content_id=?`, contentId)
	return err
}

func (repo *Repo) AddJob(job *Job) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`INSERT INTO jobs (id, name, payload, not_before, created_at)
		VALUES(?, ?, ?, ?, ?)`,
		job.Id, job.Name, job.Payload, job.NotBefore, job.CreatedAt)
	return err
}

func (repo *Repo) GetDueJobs(due time.Time, maxCount int) ([]*Job, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT id, name, payload, not_before, created_at
		FROM jobs WHERE not_before<=? ORDER BY not_before ASC LIMIT ?`, due, maxCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]*Job, 0, maxCount)
	for rows.Next() {
		job := Job{}
		err = rows.Scan(&job.Id, &job.Name, &job.Payload, &job.NotBefore, &job.CreatedAt)
		if err != nil {
			return nil, err
		}
		res = append(res, &job)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (repo *Repo) DeleteJob(id string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`DELETE FROM jobs WHERE id=?`, id)
	return err
}

func (repo *Repo) HasPendingJob(name string) (bool, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE name=?`, name)
	var err error
	var count int
	if err = row.Scan(&count); err != nil {
		return false, err
	}
	return count != 0, nil
}

// AcquireBatchLock takes the single global lock that serializes batch
// operations. A lock older than expiry is treated as left over from a
// crashed run and can be taken over.
func (repo *Repo) AcquireBatchLock(now time.Time, expiry time.Duration) (bool, error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	row := repo.db.QueryRow(`SELECT val FROM sys_params WHERE name='batch_lock'`)
	var err error
	var val string
	if err = row.Scan(&val); err != nil {
		return false, err
	}
	if val != "" {
		lockedAt, parseErr := time.Parse(time.RFC3339Nano, val)
		if parseErr == nil && now.Before(lockedAt.Add(expiry)) {
			return false, nil
		}
	}
	_, err = repo.db.Exec(`UPDATE sys_params SET val=? WHERE name='batch_lock'`,
		now.Format(time.RFC3339Nano))
	if err != nil {
		return false, err
	}
	return true, nil
}

func (repo *Repo) ReleaseBatchLock() error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE sys_params SET val='' WHERE name='batch_lock'`)
	return err
}
