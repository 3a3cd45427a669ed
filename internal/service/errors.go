package service

import "errors"

// Kind classifies an error for the caller.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindBadRequest      Kind = "BAD_REQUEST"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindGone            Kind = "GONE"
	KindInvalidState    Kind = "INVALID_STATE"
	KindPolicyViolation Kind = "POLICY_VIOLATION"
	KindInternal        Kind = "INTERNAL_SERVER_ERROR"
)

// Error is a typed service error carrying an English and an Arabic message for display.
type Error struct {
	Kind      Kind
	Message   string
	MessageAr string
	cause     error
}

func newError(kind Kind, message, messageAr string) *Error {
	return &Error{Kind: kind, Message: message, MessageAr: messageAr}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors of the same kind and message, so wrapped copies still equal their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// wrap returns a copy of e that records cause.
func (e *Error) wrap(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns err as a typed error, wrapping untyped errors as internal ones.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.wrap(err)
}

// orElse keeps typed errors and replaces anything else with fallback wrapping the cause.
func orElse(err error, fallback *Error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return fallback.wrap(err)
}

var (
	ErrInternal = newError(KindInternal, "something went wrong, please try again", "حدث خطأ ما، يرجى المحاولة مرة أخرى")

	ErrRideNotFound    = newError(KindNotFound, "ride not found", "الرحلة غير موجودة")
	ErrBookingNotFound = newError(KindNotFound, "booking not found", "الحجز غير موجود")
	ErrInvoiceNotFound = newError(KindNotFound, "invoice not found", "الفاتورة غير موجودة")
	ErrVoucherNotFound = newError(KindNotFound, "voucher not found or expired", "القسيمة غير موجودة أو منتهية الصلاحية")
	ErrUserNotFound    = newError(KindNotFound, "user not found", "المستخدم غير موجود")
	ErrBookingFailed   = newError(KindNotFound, "booking could not be completed", "تعذر إتمام الحجز")

	ErrRideFull           = newError(KindGone, "no seats left on this ride", "لا توجد مقاعد متاحة في هذه الرحلة")
	ErrRideUnavailable    = newError(KindGone, "ride is no longer available", "الرحلة لم تعد متاحة")
	ErrVoucherExhausted   = newError(KindGone, "voucher usage limit reached", "تم الوصول إلى الحد الأقصى لاستخدام القسيمة")
	ErrVoucherAlreadyUsed = newError(KindGone, "voucher already used", "لقد استخدمت هذه القسيمة من قبل")

	ErrInvalidRequest       = newError(KindBadRequest, "invalid request body", "محتوى الطلب غير صالح")
	ErrInvalidPage          = newError(KindBadRequest, "invalid pagination parameters", "معايير التصفح غير صالحة")
	ErrInvalidSeats         = newError(KindBadRequest, "seats must be at least one", "يجب حجز مقعد واحد على الأقل")
	ErrSeatDecrease         = newError(KindBadRequest, "seat count cannot be decreased", "لا يمكن تقليل عدد المقاعد")
	ErrPickupDisabled       = newError(KindBadRequest, "pickup is not enabled for this ride", "خدمة الالتقاط غير مفعلة لهذه الرحلة")
	ErrInvalidPaymentMethod = newError(KindBadRequest, "invalid payment method", "طريقة الدفع غير صالحة")
	ErrInvalidLocation      = newError(KindBadRequest, "invalid location", "الموقع غير صالح")
	ErrInvalidSchedule      = newError(KindBadRequest, "ride must be scheduled in the future", "يجب جدولة الرحلة في وقت لاحق")
	ErrRouteUnavailable     = newError(KindBadRequest, "route could not be resolved", "تعذر تحديد المسار")
	ErrGenderRestricted     = newError(KindBadRequest, "this ride is restricted to another gender", "هذه الرحلة مخصصة لجنس آخر")
	ErrInvalidGender        = newError(KindBadRequest, "invalid gender restriction", "قيد الجنس غير صالح")
	ErrNotAwaitingPayment   = newError(KindBadRequest, "booking is not awaiting payment", "الحجز ليس بانتظار الدفع")

	ErrUnauthenticated = newError(KindUnauthorized, "authentication required", "يجب تسجيل الدخول")
	ErrNotRideDriver   = newError(KindUnauthorized, "only the ride's driver can do this", "هذا الإجراء متاح لسائق الرحلة فقط")

	ErrInvoiceMismatch         = newError(KindForbidden, "invoice does not belong to this booking", "الفاتورة لا تخص هذا الحجز")
	ErrNotBookingOwner         = newError(KindForbidden, "booking belongs to another user", "الحجز يخص مستخدمًا آخر")
	ErrInvalidPaymentSignature = newError(KindForbidden, "payment signature mismatch", "توقيع الدفع غير صحيح")

	ErrInvalidRideState    = newError(KindInvalidState, "ride cannot change from its current state", "لا يمكن تغيير حالة الرحلة الحالية")
	ErrInvalidBookingState = newError(KindInvalidState, "booking cannot change from its current state", "لا يمكن تغيير حالة الحجز الحالية")
	ErrCardPaymentCaptured = newError(KindInvalidState, "booking already holds a card payment", "الحجز يتضمن دفعة بالبطاقة بالفعل")
	ErrRequestInFlight     = newError(KindInvalidState, "a request with this idempotency key is still in progress", "طلب بنفس مفتاح التكرار قيد المعالجة")

	ErrTooEarlyToStart      = newError(KindPolicyViolation, "ride can only start within one hour of departure", "لا يمكن بدء الرحلة إلا قبل موعدها بساعة")
	ErrIdempotencyKeyReused = newError(KindPolicyViolation, "idempotency key was used with a different request", "تم استخدام مفتاح التكرار مع طلب مختلف")
)
