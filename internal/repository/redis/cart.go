package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/solumart/cartcheckout/internal/domain"
	apperrors "github.com/solumart/cartcheckout/pkg/errors"
)

const (
	keyPrefix     = "cart:"
	versionPrefix = "cart:ver:"
)

// saveScript stores the cart body and advances the version counter in one
// atomic step. KEYS[1] is the cart key, KEYS[2] the version key, ARGV[1] the
// serialized cart. Returns the new version.
var saveScript = redis.NewScript(`
local ver = tonumber(redis.call('GET', KEYS[2]) or '0')
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ver + 1)
return ver + 1
`)

// casScript is the compare-and-swap variant: the write only happens when the
// stored version still equals ARGV[2]. Returns 0 when the version has
// advanced, the new version otherwise. A missing version key counts as 0, so
// an expected version of 0 creates the cart.
var casScript = redis.NewScript(`
local ver = tonumber(redis.call('GET', KEYS[2]) or '0')
if ver ~= tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ver + 1)
return ver + 1
`)

// CartRepository implements repository.CartRepository using Redis. The cart
// body lives under cart:<userID> as JSON; a companion integer counter under
// cart:ver:<userID> is the authoritative version used for optimistic locking.
type CartRepository struct {
	client *redis.Client
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client) *CartRepository {
	return &CartRepository{client: client}
}

// Get retrieves a cart by user ID from Redis.
func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	res, err := r.client.MGet(ctx, keyPrefix+userID, versionPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	raw, ok := res[0].(string)
	if !ok {
		return nil, apperrors.NotFound("cart", userID)
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}

	// The counter is authoritative; the embedded version only exists for
	// observability of the stored document.
	if verStr, ok := res[1].(string); ok {
		var ver int
		if _, err := fmt.Sscanf(verStr, "%d", &ver); err == nil {
			cart.Version = ver
		}
	}

	return &cart, nil
}

// Save persists a cart unconditionally, advancing the version past whatever
// is stored. Concurrent optimistic writers observing the old version will
// fail their compare-and-swap.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	newVer, err := r.runSave(ctx, saveScript, cart, cart.Version+1, nil)
	if err != nil {
		return err
	}
	cart.Version = newVer
	return nil
}

// SaveIfVersion persists a cart only if the stored version still equals
// expectedVersion. Returns false when another writer got there first.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	newVer, err := r.runSave(ctx, casScript, cart, expectedVersion+1, []any{expectedVersion})
	if err != nil {
		return false, err
	}
	if newVer == 0 {
		return false, nil
	}
	cart.Version = newVer
	return true, nil
}

func (r *CartRepository) runSave(ctx context.Context, script *redis.Script, cart *domain.Cart, embedVersion int, extraArgs []any) (int, error) {
	cart.Version = embedVersion
	data, err := json.Marshal(cart)
	if err != nil {
		return 0, fmt.Errorf("marshal cart: %w", err)
	}

	keys := []string{keyPrefix + cart.UserID, versionPrefix + cart.UserID}
	args := append([]any{string(data)}, extraArgs...)

	newVer, err := script.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("redis save cart: %w", err)
	}
	return newVer, nil
}
