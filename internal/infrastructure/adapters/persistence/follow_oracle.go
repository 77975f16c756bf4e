package persistence

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/valueobjects"
)

// FollowOracleAdapter 基于 follows 表的关系查询
type FollowOracleAdapter struct {
	db *sql.DB
}

// NewFollowOracleAdapter 创建关注关系查询适配器
func NewFollowOracleAdapter(db *sql.DB) ports.RelationshipOracle {
	return &FollowOracleAdapter{db: db}
}

// GetRelation 一次查询取回两个方向的关注边
func (o *FollowOracleAdapter) GetRelation(ctx context.Context, a, b string) (valueobjects.RelationType, error) {
	query := `SELECT follower_id FROM follows
			  WHERE (follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)`

	rows, err := o.db.QueryContext(ctx, query, a, b, b, a)
	if err != nil {
		return "", errors.Wrap(err, "followOracle.GetRelation.Query")
	}
	defer rows.Close()

	var aFollowsB, bFollowsA bool
	for rows.Next() {
		var follower string
		if err := rows.Scan(&follower); err != nil {
			return "", errors.Wrap(err, "followOracle.GetRelation.Scan")
		}
		switch follower {
		case a:
			aFollowsB = true
		case b:
			bFollowsA = true
		}
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "followOracle.GetRelation.Rows")
	}
	return valueobjects.RelationFromFollows(aFollowsB, bFollowsA), nil
}
