/*
fees.go - Learner financial recomputation

PURPOSE:
  Derives a learner's total course fees and current balance from the
  course catalog, the learner's discounts, and recorded payments.

  balance = effectiveRegistrationFee + totalCourseFees - sum(payments)

RECOMPUTATION CONTRACT:
  Any mutation to a learner's courses or discounts must re-run
  ComputeFinancials and persist the result atomically with the triggering
  change. Derived fields are never left stale.

SEE ALSO:
  - discount.go:   The percentage math used per fee
  - enrollment/    Calls this after every enroll/withdraw
*/
package billing

import "github.com/shopspring/decimal"

// Financials is the derived financial state of a learner.
type Financials struct {
	EffectiveRegistrationFee decimal.Decimal
	TotalCourseFees          decimal.Decimal
	Balance                  decimal.Decimal
}

// Catalog resolves course references during fee computation. Implemented by
// stores and by plain maps in tests.
type Catalog interface {
	Course(id CourseID) (*Course, bool)
}

// MapCatalog is a Catalog backed by a map, for callers that already hold
// the courses in memory.
type MapCatalog map[CourseID]*Course

func (m MapCatalog) Course(id CourseID) (*Course, bool) {
	c, ok := m[id]
	return c, ok
}

// ComputeFinancials prices a learner against the catalog.
//
// For each enrolled course the per-course discount override applies, falling
// back to zero when absent. The registration fee is discounted by the
// learner's registration discount. Referencing a course missing from the
// catalog is an error, not a zero: money-affecting lookups never default.
func ComputeFinancials(learner *Learner, catalog Catalog) (Financials, error) {
	regFee, err := ApplyDiscount(learner.RegistrationFee, learner.Discounts.Registration)
	if err != nil {
		return Financials{}, NewValidationError("discounts.registration", "registration discount must be 0-100%")
	}

	totalCourseFees := decimal.Zero
	for _, courseID := range learner.Courses {
		course, ok := catalog.Course(courseID)
		if !ok {
			return Financials{}, &NotFoundError{Resource: "course", ID: string(courseID)}
		}
		fee, err := ApplyDiscount(course.BasePrice, learner.Discounts.ForCourse(courseID))
		if err != nil {
			return Financials{}, NewValidationError("discounts.courses", "course discount must be 0-100%")
		}
		totalCourseFees = totalCourseFees.Add(fee)
	}

	balance := regFee.Add(totalCourseFees).Sub(learner.PaymentsTotal())
	return Financials{
		EffectiveRegistrationFee: regFee,
		TotalCourseFees:          totalCourseFees,
		Balance:                  balance,
	}, nil
}

// Recompute refreshes the learner's derived fields in place.
func Recompute(learner *Learner, catalog Catalog) error {
	fin, err := ComputeFinancials(learner, catalog)
	if err != nil {
		return err
	}
	learner.TotalCourseFees = fin.TotalCourseFees
	learner.Balance = fin.Balance
	return nil
}
