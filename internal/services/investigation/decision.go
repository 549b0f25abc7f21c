package investigation

import (
	"fmt"

	"disputehub/internal/models"
)

// gradeEvidence rates the evidence by count and media mix.
func gradeEvidence(evidence []models.Evidence) EvidenceQuality {
	if len(evidence) == 0 {
		return EvidencePoor
	}
	photo := hasMedia(evidence, models.MediaPhoto, "")
	video := hasMedia(evidence, models.MediaVideo, "")
	tracking := hasMedia(evidence, models.MediaTracking, "")

	switch {
	case !photo:
		return EvidencePoor
	case len(evidence) >= 4 && video && tracking:
		return EvidenceExcellent
	case len(evidence) >= 3 && (video || tracking):
		return EvidenceGood
	case len(evidence) >= 2:
		return EvidenceFair
	}
	return EvidencePoor
}

// hasMedia reports whether evidence contains an item of media type uploaded
// by role. An empty role matches any uploader.
func hasMedia(evidence []models.Evidence, media models.MediaType, role models.Role) bool {
	for _, e := range evidence {
		if e.MediaType == media && (role == "" || e.UploadedBy == role) {
			return true
		}
	}
	return false
}

type verdict struct {
	outcome     models.Outcome
	confidence  Confidence
	forceReview bool
	reasons     []string
}

// decide runs the decision tree for the claim type, then applies the
// seller's own response.
func decide(claim *models.Claim, delivery *models.DeliveryStatus, quality EvidenceQuality) verdict {
	var v verdict
	switch claim.Type {
	case models.ClaimTypeItemNotReceived:
		v = decideNotReceived(delivery)
	case models.ClaimTypeDefective, models.ClaimTypeNotAsDescribed:
		v = decideByEvidence(quality)
	case models.ClaimTypeWrongItem:
		v = decideWrongItem(claim.Evidence)
	case models.ClaimTypeMissingParts:
		v = decideMissingParts(quality)
	case models.ClaimTypeCounterfeit:
		v = decideCounterfeit(quality)
	default:
		v = verdict{
			outcome:     models.OutcomeNeedsMoreInfo,
			confidence:  ConfidenceLow,
			forceReview: true,
			reasons:     []string{fmt.Sprintf("unknown claim type %q", claim.Type)},
		}
	}

	if claim.SellerResponse == nil {
		return v
	}
	switch claim.SellerResponse.Proposal {
	case models.ProposalRefundFull:
		if claim.Type == models.ClaimTypeItemNotReceived && delivery.Status == models.TrackingDelivered {
			v.reasons = append(v.reasons, "seller offered a full refund but tracking confirms delivery")
			return v
		}
		v.outcome = models.OutcomeRefundFull
		v.confidence = ConfidenceHigh
		v.forceReview = false
		v.reasons = append(v.reasons, "seller agreed to a full refund")
	case models.ProposalDispute:
		v.forceReview = true
		v.reasons = append(v.reasons, "seller disputes the claim")
	}
	return v
}

func decideNotReceived(delivery *models.DeliveryStatus) verdict {
	switch delivery.Status {
	case models.TrackingDelivered:
		return verdict{
			outcome:    models.OutcomeReject,
			confidence: ConfidenceHigh,
			reasons:    []string{"tracking confirms delivery"},
		}
	case models.TrackingLost, models.TrackingReturned:
		return verdict{
			outcome:    models.OutcomeRefundFull,
			confidence: ConfidenceHigh,
			reasons:    []string{fmt.Sprintf("carrier reports the parcel as %s", delivery.Status)},
		}
	}
	return verdict{
		outcome:     models.OutcomeNeedsMoreInfo,
		confidence:  ConfidenceLow,
		forceReview: true,
		reasons:     []string{"tracking is inconclusive"},
	}
}

func decideByEvidence(quality EvidenceQuality) verdict {
	switch quality {
	case EvidenceExcellent:
		return verdict{outcome: models.OutcomeRefundFull, confidence: ConfidenceHigh,
			reasons: []string{"evidence is excellent"}}
	case EvidenceGood:
		return verdict{outcome: models.OutcomeRefundFull, confidence: ConfidenceMedium,
			reasons: []string{"evidence is good"}}
	case EvidenceFair:
		return verdict{outcome: models.OutcomeRefundPartial, confidence: ConfidenceMedium, forceReview: true,
			reasons: []string{"evidence is only adequate, partial refund pending review"}}
	}
	return verdict{outcome: models.OutcomeNeedsMoreInfo, confidence: ConfidenceLow,
		reasons: []string{"evidence is insufficient"}}
}

func decideWrongItem(evidence []models.Evidence) verdict {
	if hasMedia(evidence, models.MediaPhoto, "") {
		return verdict{outcome: models.OutcomeReplacement, confidence: ConfidenceMedium,
			reasons: []string{"photo of the received item supplied"}}
	}
	return verdict{outcome: models.OutcomeNeedsMoreInfo, confidence: ConfidenceLow,
		reasons: []string{"no photo of the received item"}}
}

func decideMissingParts(quality EvidenceQuality) verdict {
	switch {
	case quality.atLeast(EvidenceGood):
		return verdict{outcome: models.OutcomeRefundPartial, confidence: ConfidenceHigh,
			reasons: []string{"missing parts are well documented"}}
	case quality == EvidenceFair:
		return verdict{outcome: models.OutcomeRefundPartial, confidence: ConfidenceMedium,
			reasons: []string{"missing parts are partly documented"}}
	}
	return verdict{outcome: models.OutcomeNeedsMoreInfo, confidence: ConfidenceLow,
		reasons: []string{"missing parts are not documented"}}
}

func decideCounterfeit(quality EvidenceQuality) verdict {
	if quality.atLeast(EvidenceGood) {
		return verdict{outcome: models.OutcomeRefundFull, confidence: ConfidenceMedium, forceReview: true,
			reasons: []string{"counterfeit allegation is documented"}}
	}
	return verdict{outcome: models.OutcomeNeedsMoreInfo, confidence: ConfidenceLow, forceReview: true,
		reasons: []string{"counterfeit allegation needs authentication"}}
}
