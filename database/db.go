package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/courtsidehq/courtside/cache"

	"github.com/courtsidehq/courtside/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	for _, create := range []func(*sql.DB) error{
		createProfileTable,
		createEventTable,
		createTicketTypeTable,
		createSaleSummaryTable,
		createSaleLineTable,
		createEntitlementTable,
		createPaymentEventTable,
		createOperationTable,
		createNotificationOutboxTable,
		createNotificationTable,
		createEmailOutboxTable,
		createEmailIdentityTable,
		createPairingTable,
		createMatchSlotTable,
		createPromoRedemptionTable,
	} {
		if err := create(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// createOperationTable creates the durable queue backing the operations worker.
func createOperationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS operations (
			id BIGSERIAL PRIMARY KEY,
			operation_type TEXT NOT NULL,
			dedupe_key TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'PENDING',
			attempts INT NOT NULL DEFAULT 0,
			payload JSONB NOT NULL DEFAULT '{}',
			payment_intent_id TEXT,
			purchase_id TEXT,
			provider_event_id TEXT,
			event_id BIGINT,
			last_error TEXT,
			locked_at TIMESTAMP,
			next_retry_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_operations_claimable ON operations (status, next_retry_at, created_at);
	`)
	return err
}

func createNotificationOutboxTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_outbox (
			outbox_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			notification_type TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'PENDING',
			retries INT NOT NULL DEFAULT 0,
			last_error TEXT,
			locked_at TIMESTAMP,
			sent_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_notification_outbox_pending ON notification_outbox (status, retries, created_at);
	`)
	return err
}

func createNotificationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			notification_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			cta_url TEXT,
			cta_label TEXT,
			priority TEXT NOT NULL DEFAULT 'NORMAL',
			from_user_id TEXT,
			organization_id BIGINT,
			event_id BIGINT,
			source_event_id TEXT NOT NULL UNIQUE,
			payload JSONB NOT NULL DEFAULT '{}',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createEventTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			organization_id BIGINT,
			template_type TEXT,
			starts_at TIMESTAMP,
			ends_at TIMESTAMP,
			timezone TEXT,
			location_name TEXT,
			location_city TEXT,
			address TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createTicketTypeTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticket_types (
			id BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL REFERENCES events(id),
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'EUR',
			max_quantity INT NOT NULL DEFAULT 0,
			sold_quantity INT NOT NULL DEFAULT 0
		)
	`)
	return err
}

func createSaleSummaryTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sale_summaries (
			id BIGSERIAL PRIMARY KEY,
			payment_intent_id TEXT NOT NULL UNIQUE,
			purchase_id TEXT NOT NULL,
			event_id BIGINT,
			user_id TEXT,
			owner_identity_id TEXT,
			promo_code_id BIGINT,
			subtotal_cents BIGINT NOT NULL DEFAULT 0,
			discount_cents BIGINT NOT NULL DEFAULT 0,
			platform_fee_cents BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'EUR',
			fee_mode TEXT,
			status TEXT NOT NULL DEFAULT 'PAID',
			dispute_reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sale_summaries_purchase ON sale_summaries (purchase_id);
	`)
	return err
}

func createSaleLineTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sale_lines (
			id BIGSERIAL PRIMARY KEY,
			sale_summary_id BIGINT NOT NULL REFERENCES sale_summaries(id),
			event_id BIGINT,
			ticket_type_id BIGINT NOT NULL,
			promo_code_id BIGINT,
			quantity INT NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			discount_per_unit_cents BIGINT NOT NULL DEFAULT 0,
			gross_cents BIGINT NOT NULL DEFAULT 0,
			net_cents BIGINT NOT NULL DEFAULT 0,
			platform_fee_cents BIGINT NOT NULL DEFAULT 0
		)
	`)
	return err
}

func createEntitlementTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entitlements (
			entitlement_id TEXT PRIMARY KEY,
			purchase_id TEXT NOT NULL,
			sale_line_id BIGINT NOT NULL,
			line_item_index INT NOT NULL,
			owner_key TEXT NOT NULL,
			owner_user_id TEXT,
			owner_identity_id TEXT,
			event_id BIGINT,
			ticket_type_id BIGINT,
			entitlement_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			qr_secret TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (purchase_id, ticket_type_id, line_item_index, owner_key, entitlement_type)
		)
	`)
	return err
}

func createPaymentEventTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_events (
			id BIGSERIAL PRIMARY KEY,
			payment_intent_id TEXT NOT NULL UNIQUE,
			purchase_id TEXT,
			event_id BIGINT,
			user_id TEXT,
			status TEXT NOT NULL DEFAULT 'OK',
			error_message TEXT,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createEmailOutboxTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS email_outbox (
			id BIGSERIAL PRIMARY KEY,
			dedupe_key TEXT NOT NULL UNIQUE,
			template_key TEXT NOT NULL,
			recipient TEXT NOT NULL,
			purchase_id TEXT,
			entitlement_id TEXT,
			payload JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'PENDING',
			error_code TEXT,
			sent_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createEmailIdentityTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS email_identities (
			identity_id TEXT PRIMARY KEY,
			email_normalized TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			verified_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createPairingTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pairings (
			id BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL REFERENCES events(id),
			invite_token TEXT UNIQUE,
			player_names JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createMatchSlotTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS match_slots (
			id BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL REFERENCES events(id),
			pairing_a_id BIGINT,
			pairing_b_id BIGINT,
			court_name TEXT,
			start_time TIMESTAMP,
			score_sets JSONB NOT NULL DEFAULT '[]',
			result_type TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createProfileTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			full_name TEXT,
			username TEXT UNIQUE,
			email TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createPromoRedemptionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS promo_redemptions (
			id BIGSERIAL PRIMARY KEY,
			promo_code_id BIGINT NOT NULL,
			purchase_id TEXT NOT NULL,
			user_id TEXT,
			guest_email TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (promo_code_id, purchase_id)
		)
	`)
	return err
}
