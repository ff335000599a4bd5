package types

// Y/N flags are stored as single-character strings, matching the legacy schema.
const (
	YnYes = "Y"
	YnNo  = "N"
)

// Sign-in kinds (User.latest_signed_type and SocialBinding.sns_type).
const (
	SignedTypeLocal  = "local"
	SignedTypeNaver  = "naver"
	SignedTypeGoogle = "google"
	SignedTypeKakao  = "kakao"
	SignedTypeApple  = "apple"
)

// Notification preference rows seeded at signup.
var NotificationPrefTypes = []string{
	NotifPrefBenefit,
	NotifPrefComment,
	NotifPrefSystem,
	NotifPrefEvent,
	NotifPrefMarketing,
}

const (
	NotifPrefBenefit   = "benefit"
	NotifPrefComment   = "comment"
	NotifPrefSystem    = "system"
	NotifPrefEvent     = "event"
	NotifPrefMarketing = "marketing"
)

// Product / episode price types and statuses.
const (
	PriceTypeFree = "free"
	PriceTypePaid = "paid"

	StatusOngoing = "ongoing"
	StatusRest    = "rest"
	StatusEnd     = "end"
	StatusStop    = "stop"

	RatingsAll   = "all"
	RatingsAdult = "adult"
)

// Ticket types. The promotion-minted kinds carry the promotion that created
// them.
const (
	TicketTypeFree           = "free"
	TicketTypePaid           = "paid"
	TicketTypeComped         = "comped"
	TicketTypeWaitingForFree = "waiting-for-free"
	TicketTypeSixNinePath    = "6-9-path"
	TicketTypeFreeForFirst   = "free-for-first"

	OwnTypeOwn    = "own"
	OwnTypeRental = "rental"
)

// Giftbook acquisition sources.
const (
	AcquisitionDirectPromotion  = "direct_promotion"
	AcquisitionAppliedPromotion = "applied_promotion"
)

// Promotion kinds and lifecycle states.
const (
	PromotionWaitingForFree = "waiting-for-free"
	PromotionSixNinePath    = "6-9-path"
	PromotionFreeForFirst   = "free-for-first"

	PromotionStatusIng    = "ing"
	PromotionStatusApply  = "apply"
	PromotionStatusCancel = "cancel"
	PromotionStatusEnd    = "end"
	PromotionStatusStop   = "stop"
)

// Interest-decay states derived from the latest usage record.
const (
	InterestNone       = "no_interest"
	InterestActive     = "interest_active"
	InterestEndingSoon = "interest_ending_soon"
)

// File group content classes.
const (
	FileGroupCover   = "cover"
	FileGroupEpisode = "episode"
	FileGroupEpub    = "epub"
	FileGroupBadge   = "badge"
	FileGroupProfile = "profile"
)

// FileItem upload states: an item is pending between the DB insert and the
// signed-URL upload completing.
const (
	FileStatusPending = "pending"
	FileStatusReady   = "ready"
)

// Recommend similar list scopes.
const (
	SimilarTypeContent = "content"
	SimilarTypeGenre   = "genre"
	SimilarTypeCart    = "cart"
)
