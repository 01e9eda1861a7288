// Package cred 提供交易所接入凭证的查询。
// 优先读取数据库中由管理端维护的 api_keys 表，缺失时回退到配置文件。
package cred

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"order-router/internal/config"
	"order-router/internal/order"
	"order-router/internal/store"
)

// Credentials 为适配器构造所需的全部秘密材料。
type Credentials struct {
	APIKey        string
	APISecret     string
	Passphrase    string
	AccountNumber string
	AccountCode   string
	UseSandbox    bool
}

// ErrNotFound 表示找不到指定场所的凭证。
var ErrNotFound = errors.New("cred: 未找到凭证")

// Provider 按场所（证券场所附带槽位号）返回凭证。
type Provider interface {
	Credentials(ctx context.Context, venue order.Venue, slot int) (Credentials, error)
}

// Store 为带配置回退的数据库凭证源。
type Store struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

var _ Provider = (*Store)(nil)

// NewStore 初始化凭证存储并创建所需表结构。
func NewStore(st *store.Store, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if st == nil {
		return nil, errors.New("cred: store 不能为空")
	}
	if cfg == nil {
		return nil, errors.New("cred: 配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		db:     st.DB(),
		cfg:    cfg,
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS api_keys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	venue TEXT NOT NULL,
	slot INTEGER NOT NULL DEFAULT 0,
	api_key TEXT NOT NULL,
	secret_key TEXT NOT NULL,
	passphrase TEXT,
	account_number TEXT,
	account_code TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_api_keys_venue ON api_keys(venue, slot);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("cred: 初始化表失败: %w", err)
	}
	return nil
}

// Credentials 查询指定场所的凭证。数据库中启用的记录优先，其次回退配置。
func (s *Store) Credentials(ctx context.Context, venue order.Venue, slot int) (Credentials, error) {
	creds, err := s.fromDB(ctx, venue, slot)
	if err == nil {
		s.logger.Debug("从数据库加载凭证", zap.String("venue", string(venue)), zap.Int("slot", slot))
		return creds, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, fmt.Errorf("cred: 查询凭证失败: %w", err)
	}

	return s.fromConfig(venue, slot)
}

func (s *Store) fromDB(ctx context.Context, venue order.Venue, slot int) (Credentials, error) {
	query := `SELECT api_key, secret_key, COALESCE(passphrase,''), COALESCE(account_number,''), COALESCE(account_code,'')
		FROM api_keys WHERE venue = ? AND slot = ? AND is_active = 1
		ORDER BY created_at DESC LIMIT 1`

	var creds Credentials
	row := s.db.QueryRowContext(ctx, query, string(venue), slot)
	if err := row.Scan(&creds.APIKey, &creds.APISecret, &creds.Passphrase, &creds.AccountNumber, &creds.AccountCode); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (s *Store) fromConfig(venue order.Venue, slot int) (Credentials, error) {
	if venue.IsStock() {
		account, ok := s.cfg.KISAccount(slot)
		if !ok {
			return Credentials{}, fmt.Errorf("%w: %s 槽位 %d", ErrNotFound, venue, slot)
		}
		return Credentials{
			APIKey:        account.APIKey,
			APISecret:     account.APISecret,
			AccountNumber: account.AccountNumber,
			AccountCode:   account.AccountCode,
		}, nil
	}

	vc, ok := s.cfg.Venue(string(venue))
	if !ok || vc.APIKey == "" {
		return Credentials{}, fmt.Errorf("%w: %s", ErrNotFound, venue)
	}
	return Credentials{
		APIKey:     vc.APIKey,
		APISecret:  vc.APISecret,
		Passphrase: vc.Passphrase,
		UseSandbox: vc.UseSandbox,
	}, nil
}
