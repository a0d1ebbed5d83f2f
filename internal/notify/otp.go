package notify

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTP limits.
const (
	OTPCooldown    = 30 * time.Second
	OTPMaxAttempts = 5
)

var (
	ErrOTPCooldown    = errors.New("otp recently sent")
	ErrOTPExpired     = errors.New("otp expired or not requested")
	ErrOTPMismatch    = errors.New("otp does not match")
	ErrOTPTooMany     = errors.New("too many otp attempts")
	ErrOTPUnavailable = errors.New("otp store unavailable")
)

// OTP issues and verifies numeric one-time passwords. Only a SHA-256 of the
// code is kept in Redis.
type OTP struct {
	rdb    *redis.Client
	sms    SMSSender
	ttl    time.Duration
	length int
	gen    func(n int) (string, error)
}

// NewOTP builds the OTP service. A nil rdb makes every call fail with
// ErrOTPUnavailable.
func NewOTP(rdb *redis.Client, sms SMSSender, ttl time.Duration, length int) *OTP {
	if length < 4 || length > 10 {
		length = 6
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTP{rdb: rdb, sms: sms, ttl: ttl, length: length, gen: randomDigits}
}

func otpKey(phone string) string      { return "otp:" + phone }
func cooldownKey(phone string) string { return "otp:cd:" + phone }

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Issue generates a code for phone, stores it and sends it by SMS.
func (o *OTP) Issue(ctx context.Context, phone string) error {
	if o.rdb == nil {
		return ErrOTPUnavailable
	}
	ok, err := o.rdb.SetNX(ctx, cooldownKey(phone), 1, OTPCooldown).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrOTPCooldown
	}
	code, err := o.gen(o.length)
	if err != nil {
		return err
	}
	pipe := o.rdb.TxPipeline()
	pipe.HSet(ctx, otpKey(phone), "hash", hashCode(code), "attempts", 0)
	pipe.Expire(ctx, otpKey(phone), o.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	msg := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(o.ttl.Minutes()))
	if err := o.sms.Send(ctx, phone, msg); err != nil {
		_ = o.rdb.Del(ctx, otpKey(phone), cooldownKey(phone)).Err()
		return err
	}
	return nil
}

// attemptScript reads the stored hash and counts the attempt in one step, so
// a key that expires mid-verify is never recreated without a TTL.
var attemptScript = redis.NewScript(`
local h = redis.call('HGET', KEYS[1], 'hash')
if not h then
	return false
end
return {h, redis.call('HINCRBY', KEYS[1], 'attempts', 1)}
`)

// Verify checks code for phone. A correct code is consumed; after
// OTPMaxAttempts wrong tries the code is discarded.
func (o *OTP) Verify(ctx context.Context, phone, code string) error {
	if o.rdb == nil {
		return ErrOTPUnavailable
	}
	res, err := attemptScript.Run(ctx, o.rdb, []string{otpKey(phone)}).Slice()
	if errors.Is(err, redis.Nil) {
		return ErrOTPExpired
	}
	if err != nil {
		return err
	}
	if len(res) != 2 {
		return fmt.Errorf("otp: unexpected script reply %v", res)
	}
	stored, _ := res[0].(string)
	attempts, _ := res[1].(int64)
	if attempts > OTPMaxAttempts {
		_ = o.rdb.Del(ctx, otpKey(phone)).Err()
		return ErrOTPTooMany
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(hashCode(code))) != 1 {
		return ErrOTPMismatch
	}
	return o.rdb.Del(ctx, otpKey(phone)).Err()
}

func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}
