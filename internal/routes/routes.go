package routes

const (
	// Health
	Health = "/health"

	// Property endpoints
	PropertiesBase = "/api/v1/properties"
	PropertiesMy   = "/api/v1/properties/my"
	PropertyByID   = "/api/v1/properties/{id}"

	// Verification workflow
	VerificationRequest = "/api/v1/properties/verification"
	VerificationStart   = "/api/v1/properties/verification/start"
	VerificationResolve = "/api/v1/properties/verification/resolve"

	// Tokenization
	PropertiesTokenize = "/api/v1/properties/tokenize"

	// Marketplace
	ListingsBase  = "/api/v1/listings"
	ListingByID   = "/api/v1/listings/{id}"
	ListingBids   = "/api/v1/listings/{id}/bids"
	ListingCancel = "/api/v1/listings/{id}/cancel"
	BidsBase      = "/api/v1/bids"
	BidsAccept    = "/api/v1/bids/accept"
	BidsReject    = "/api/v1/bids/reject"
	BidsWithdraw  = "/api/v1/bids/withdraw"

	// Escrow / settlement
	EscrowsBase   = "/api/v1/escrows"
	EscrowByID    = "/api/v1/escrows/{id}"
	EscrowRelease = "/api/v1/escrows/{id}/release"
	EscrowDispute = "/api/v1/escrows/dispute"

	// Admin endpoints
	AdminPropertyStatus = "/api/v1/admin/properties/status"
	AdminEscrowResolve  = "/api/v1/admin/escrows/resolve"
)
