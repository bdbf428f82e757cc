package gamestore

// gorm models backing the native engines. Engine types stay free of
// persistence tags; conversion happens at this boundary.

type seedRecord struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         string `gorm:"index:idx_seeds_user"`
	ServerSeed     string `gorm:"type:varchar(128);not null"`
	ServerSeedHash string `gorm:"type:varchar(64);uniqueIndex"`
	ClientSeed     string `gorm:"type:varchar(128)"`
	Nonce          uint64
	Active         bool `gorm:"index:idx_seeds_user"`
	CreatedAt      int64
	RevealedAt     int64
}

func (seedRecord) TableName() string { return "seeds" }

type walletRecord struct {
	UserID          string `gorm:"primaryKey;type:varchar(64)"`
	RealBalance     int64
	BonusBalance    int64
	LockedBalance   int64
	LifetimeWagered int64
	LifetimeWon     int64
	CreatedAt       int64
	UpdatedAt       int64
}

func (walletRecord) TableName() string { return "wallets" }

type transactionRecord struct {
	ID            string `gorm:"primaryKey;type:varchar(64)"`
	UserID        string `gorm:"index;type:varchar(64)"`
	Type          string `gorm:"type:varchar(32);not null"`
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Pool          uint8
	ReferenceType string `gorm:"type:varchar(32)"`
	ReferenceID   string `gorm:"type:varchar(64)"`
	// Pointer so absent external ids do not collide on the unique index.
	ExternalTxnID *string `gorm:"type:varchar(128);uniqueIndex"`
	Description   string  `gorm:"type:varchar(255)"`
	RolledBack    bool
	CreatedAt     int64
}

func (transactionRecord) TableName() string { return "transactions" }

type roundRecord struct {
	ID             string `gorm:"primaryKey;type:varchar(64)"`
	ServerSeed     string `gorm:"type:varchar(128);not null"`
	ServerSeedHash string `gorm:"type:varchar(64);index"`
	ClientSeed     string `gorm:"type:varchar(128)"`
	Nonce          uint64
	CrashPoint     float64
	StartedAt      int64
	EndedAt        int64
}

func (roundRecord) TableName() string { return "rounds" }

type roundBetRecord struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	RoundID           string `gorm:"index;type:varchar(64)"`
	UserID            string `gorm:"index;type:varchar(64)"`
	Stake             int64
	AutoCashout       float64
	State             int32
	CashoutMultiplier float64
	Payout            int64
}

func (roundBetRecord) TableName() string { return "round_bets" }
