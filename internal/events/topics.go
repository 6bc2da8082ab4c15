package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicCartChanged    = "cart.changed"
	TopicOrderCreated   = "order.created"
	TopicCouponRedeemed = "coupon.redeemed"
)

// DefaultTopics returns the canonical list of topics subscribers may attach to.
func DefaultTopics() []string {
	return []string{
		TopicCartChanged,
		TopicOrderCreated,
		TopicCouponRedeemed,
	}
}
