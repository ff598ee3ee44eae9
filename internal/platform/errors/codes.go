package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Conversation errors
	CodeConversationIDEmpty       Code = "CONVERSATION_ID_EMPTY"
	CodeConversationMessageEmpty  Code = "CONVERSATION_MESSAGE_EMPTY"
	CodeConversationMessageLong   Code = "CONVERSATION_MESSAGE_TOO_LONG"
	CodeConversationInvalidSource Code = "CONVERSATION_INVALID_SOURCE"
	CodeConversationInvalidStage  Code = "CONVERSATION_INVALID_STAGE"
	CodeConversationStageSkipped  Code = "CONVERSATION_STAGE_SKIPPED"
	CodeConversationAbandoned     Code = "CONVERSATION_ABANDONED"

	// Proposal errors
	CodeProposalMissing        Code = "PROPOSAL_MISSING"
	CodeProposalInvalidTier    Code = "PROPOSAL_INVALID_TIER"
	CodeProposalBeforeScoping  Code = "PROPOSAL_BEFORE_SCOPING"
	CodeProposalAlreadyPitched Code = "PROPOSAL_ALREADY_PITCHED"

	// Lead errors
	CodeLeadConversationMissing Code = "LEAD_CONVERSATION_MISSING"
	CodeLeadAlreadyRecorded     Code = "LEAD_ALREADY_RECORDED"

	// Provider errors
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeProviderRejected    Code = "PROVIDER_REJECTED"
	CodeProviderMalformed   Code = "PROVIDER_RESPONSE_MALFORMED"
	CodeProviderRateLimited Code = "PROVIDER_RATE_LIMITED"

	// Admin access errors
	CodeAdminTokenMissing Code = "ADMIN_TOKEN_MISSING"
	CodeAdminTokenInvalid Code = "ADMIN_TOKEN_INVALID"
	CodeAdminTokenExpired Code = "ADMIN_TOKEN_EXPIRED"
	CodeAdminUnconfigured Code = "ADMIN_ACCESS_UNCONFIGURED"

	// Transport errors
	CodeRequestMalformed Code = "REQUEST_MALFORMED"

	// Listing errors
	CodeFilterInvalid    Code = "FILTER_INVALID"
	CodePageSizeInvalid  Code = "PAGE_SIZE_INVALID"
	CodePageTokenInvalid Code = "PAGE_TOKEN_INVALID"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeConversationIDEmpty,
		CodeConversationMessageEmpty,
		CodeConversationMessageLong,
		CodeConversationInvalidSource,
		CodeConversationInvalidStage,
		CodeFilterInvalid,
		CodePageSizeInvalid,
		CodePageTokenInvalid,
		CodeProposalInvalidTier,
		CodeRequestMalformed:
		return http.StatusBadRequest

	// Unauthorized - missing or rejected operator credentials
	case CodeAdminTokenMissing,
		CodeAdminTokenInvalid,
		CodeAdminTokenExpired:
		return http.StatusUnauthorized

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - state doesn't allow operation
	case CodeConversationStageSkipped,
		CodeConversationAbandoned,
		CodeProposalMissing,
		CodeProposalBeforeScoping,
		CodeProposalAlreadyPitched,
		CodeLeadConversationMissing,
		CodeLeadAlreadyRecorded:
		return http.StatusConflict

	// Too many requests - upstream model quota exhausted
	case CodeProviderRateLimited:
		return http.StatusTooManyRequests

	// Service unavailable - upstream or storage dependency down, or a
	// surface that was never configured for this deployment
	case CodeProviderUnavailable,
		CodeProviderRejected,
		CodeProviderMalformed,
		CodeStoreUnavailable,
		CodeAdminUnconfigured:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
