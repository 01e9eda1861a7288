package hedge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"order-router/internal/order"
	"order-router/internal/store"
)

// Ledger 是对冲腿的只追加台账。
// 读取是幂等的；读汇总与写入之间的串行化由编排器按 base 加锁保证。
type Ledger interface {
	// CreateLeg 记录一条已确认成交的腿，返回记录 id。
	CreateLeg(ctx context.Context, record LegRecord) (string, error)
	// OpenLegs 按场所汇总指定 base 的未平腿。
	OpenLegs(ctx context.Context, base string) (map[order.Venue]LegSummary, error)
	// DeleteLegs 删除已平仓的腿记录。
	DeleteLegs(ctx context.Context, ids []string) error
}

// SQLiteLedger 基于 SQLite 的台账实现。
type SQLiteLedger struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger 初始化台账并创建表结构。
func NewSQLiteLedger(st *store.Store, logger *zap.Logger) (*SQLiteLedger, error) {
	if st == nil {
		return nil, errors.New("hedge: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &SQLiteLedger{
		db:     st.DB(),
		logger: logger,
	}

	if err := l.initSchema(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS hedge_legs (
	id TEXT PRIMARY KEY,
	venue TEXT NOT NULL,
	base TEXT NOT NULL,
	quote TEXT NOT NULL,
	amount REAL NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hedge_legs_base ON hedge_legs(base);
`
	if _, err := l.db.Exec(stmt); err != nil {
		return fmt.Errorf("hedge: 初始化台账表失败: %w", err)
	}
	return nil
}

// CreateLeg 落账一条腿记录。
func (l *SQLiteLedger) CreateLeg(ctx context.Context, record LegRecord) (string, error) {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO hedge_legs (id, venue, base, quote, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(record.Venue), record.Base, record.Quote, record.Amount,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("hedge: 写入台账失败: %w", err)
	}

	l.logger.Debug("台账新增腿记录",
		zap.String("id", id),
		zap.String("venue", string(record.Venue)),
		zap.String("base", record.Base),
		zap.Float64("amount", record.Amount),
	)

	return id, nil
}

// OpenLegs 汇总指定 base 的未平敞口。
func (l *SQLiteLedger) OpenLegs(ctx context.Context, base string) (map[order.Venue]LegSummary, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, venue, amount FROM hedge_legs WHERE base = ? ORDER BY created_at`, base)
	if err != nil {
		return nil, fmt.Errorf("hedge: 查询台账失败: %w", err)
	}
	defer rows.Close()

	summaries := make(map[order.Venue]LegSummary)
	for rows.Next() {
		var (
			id     string
			venue  string
			amount float64
		)
		if scanErr := rows.Scan(&id, &venue, &amount); scanErr != nil {
			return nil, fmt.Errorf("hedge: 解析台账记录失败: %w", scanErr)
		}

		v := order.Venue(venue)
		summary := summaries[v]
		summary.Amount += amount
		summary.IDs = append(summary.IDs, id)
		summaries[v] = summary
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hedge: 读取台账失败: %w", err)
	}

	return summaries, nil
}

// DeleteLegs 在单个事务内删除全部指定记录。
func (l *SQLiteLedger) DeleteLegs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("hedge: 开启事务失败: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM hedge_legs WHERE id IN (%s)`, placeholders), args...,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("hedge: 删除台账记录失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("hedge: 提交事务失败: %w", err)
	}

	return nil
}
