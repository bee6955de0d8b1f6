package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// Schema:
//
//	CREATE TABLE auctions (
//	    id             BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    item_id        BIGINT NOT NULL UNIQUE,
//	    seller_id      BIGINT NOT NULL,
//	    bidder_id      BIGINT NULL,
//	    starting_price DECIMAL(19,4) NOT NULL,
//	    current_price  DECIMAL(19,4) NOT NULL,
//	    start_date     DATETIME NOT NULL,
//	    end_date       DATETIME NOT NULL,
//	    finished       BOOLEAN NOT NULL DEFAULT FALSE,
//	    public_access  BOOLEAN NOT NULL DEFAULT TRUE,
//	    version        BIGINT NOT NULL DEFAULT 1,
//	    KEY idx_auctions_seller (seller_id),
//	    KEY idx_auctions_end_date (end_date)
//	)
type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

const auctionColumns = `id, item_id, seller_id, bidder_id, starting_price, current_price, start_date, end_date, finished, public_access, version`

func (r *MySQLAuctionRepository) Create(ctx context.Context, auction *domain.Auction) (int64, error) {
	query := `
        INSERT INTO auctions (item_id, seller_id, bidder_id, starting_price, current_price, start_date, end_date, finished, public_access, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
    `
	result, err := r.db.ExecContext(ctx, query,
		auction.ItemID, auction.SellerID, auction.BidderID,
		auction.StartingPrice, auction.CurrentPrice,
		auction.StartDate, auction.EndDate,
		auction.Finished, auction.PublicAccess)
	if err != nil {
		return 0, domain.ErrStoreFailed("failed to save auction", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, domain.ErrStoreFailed("failed to read assigned auction id", err)
	}
	return id, nil
}

func (r *MySQLAuctionRepository) Get(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := r.scanOne(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound()
		}
		return nil, domain.ErrStoreFailed("failed to load auction", err)
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) GetByItem(ctx context.Context, itemID int64) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE item_id = ?`

	auction, err := r.scanOne(r.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrStoreFailed("failed to load auction by item", err)
	}
	return auction, nil
}

// Update is conditional on the version read with the row. RowsAffected == 0
// means either a lost race or a deleted row; callers reload to tell apart.
func (r *MySQLAuctionRepository) Update(ctx context.Context, auction *domain.Auction) error {
	query := `
        UPDATE auctions
        SET starting_price = ?, current_price = ?, bidder_id = ?, start_date = ?, end_date = ?, finished = ?, public_access = ?, version = version + 1
        WHERE id = ? AND version = ?
    `
	result, err := r.db.ExecContext(ctx, query,
		auction.StartingPrice, auction.CurrentPrice, auction.BidderID,
		auction.StartDate, auction.EndDate,
		auction.Finished, auction.PublicAccess,
		auction.ID, auction.Version)
	if err != nil {
		return domain.ErrStoreFailed("failed to update auction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.ErrStoreFailed("failed to update auction", err)
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}

	auction.Version++
	return nil
}

func (r *MySQLAuctionRepository) Delete(ctx context.Context, auctionID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auctions WHERE id = ?`, auctionID); err != nil {
		return domain.ErrStoreFailed("failed to delete auction", err)
	}
	return nil
}

func (r *MySQLAuctionRepository) ListBySeller(ctx context.Context, sellerID int64) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE seller_id = ?`
	return r.list(ctx, query, sellerID)
}

func (r *MySQLAuctionRepository) ListActivePublic(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE finished = FALSE AND public_access = TRUE`
	return r.list(ctx, query)
}

func (r *MySQLAuctionRepository) ListActive(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE finished = FALSE`
	return r.list(ctx, query)
}

func (r *MySQLAuctionRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE end_date > ? AND end_date <= ?`
	return r.list(ctx, query, from, to)
}

func (r *MySQLAuctionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ErrStoreFailed("failed to query auctions", err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := r.scanOne(rows)
		if err != nil {
			return nil, domain.ErrStoreFailed("failed to scan auction", err)
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStoreFailed("failed to iterate auctions", err)
	}

	return auctions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *MySQLAuctionRepository) scanOne(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var bidderID sql.NullInt64

	err := row.Scan(
		&auction.ID, &auction.ItemID, &auction.SellerID, &bidderID,
		&auction.StartingPrice, &auction.CurrentPrice,
		&auction.StartDate, &auction.EndDate,
		&auction.Finished, &auction.PublicAccess, &auction.Version)
	if err != nil {
		return nil, err
	}

	if bidderID.Valid {
		auction.BidderID = &bidderID.Int64
	}
	return &auction, nil
}
