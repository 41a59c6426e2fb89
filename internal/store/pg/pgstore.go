package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"neurocare.org/internal/auth"
	"neurocare.org/internal/ids"
)

// Store implements auth.UserStore on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ auth.UserStore = (*Store)(nil)

// Open connects with the pgx stdlib driver and tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool. Used by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const uniqueViolation = "23505"

func (s *Store) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users(id, name, email, password_hash)
		values ($1,$2,$3,$4)
		returning created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, otp_code, otp_expiry, created_at, updated_at
		from users where email=$1`, email)
	return scanUser(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, otp_code, otp_expiry, created_at, updated_at
		from users where id=$1`, id)
	return scanUser(row)
}

func (s *Store) Update(ctx context.Context, u *auth.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set name=$2, email=$3, password_hash=$4, otp_code=$5, otp_expiry=$6, updated_at=now()
		where id=$1`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.OTPCode, u.OTPExpiry,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u         auth.User
		otpCode   sql.NullString
		otpExpiry sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &otpCode, &otpExpiry, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if otpCode.Valid {
		u.OTPCode = &otpCode.String
	}
	if otpExpiry.Valid {
		expiry := otpExpiry.Time
		u.OTPExpiry = &expiry
	}
	return &u, nil
}
