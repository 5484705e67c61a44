/*
Package enrollment keeps learner/course membership symmetric.

PURPOSE:
  Learner.Courses and Course.Learners reference each other. Instead of
  relying on implicit lifecycle hooks to keep the two sides in sync, this
  package exposes explicit Enroll/Withdraw operations that update both
  records and the learner's derived financials in one transaction.

INVARIANTS:
  - learner.Courses contains courseID  <=>  course.Learners contains learnerID
  - TotalCourseFees and Balance are recomputed with every membership or
    discount change; they are never left stale
  - Soft-deleted learners and courses cannot gain new enrollments

SEE ALSO:
  - billing/fees.go: the recomputation this service triggers
*/
package enrollment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tuition-engine/billing"
)

// Service performs membership and discount mutations transactionally.
type Service struct {
	Store billing.Store
}

func NewService(store billing.Store) *Service {
	return &Service{Store: store}
}

// Enroll adds the learner to the course and vice versa, then recomputes the
// learner's financials. Enrolling twice is a conflict.
func (s *Service) Enroll(ctx context.Context, learnerID billing.LearnerID, courseID billing.CourseID) error {
	return s.Store.WithTx(ctx, func(tx billing.Store) error {
		learner, course, err := loadPair(ctx, tx, learnerID, courseID)
		if err != nil {
			return err
		}
		if learner.EnrolledIn(courseID) {
			return &billing.ConflictError{Message: "learner already enrolled in course"}
		}

		learner.Courses = append(learner.Courses, courseID)
		course.Learners = append(course.Learners, learnerID)
		return saveBoth(ctx, tx, learner, course)
	})
}

// Withdraw removes the learner from the course and vice versa, then
// recomputes the learner's financials. The learner's per-course discount
// override for the withdrawn course is dropped with the membership.
func (s *Service) Withdraw(ctx context.Context, learnerID billing.LearnerID, courseID billing.CourseID) error {
	return s.Store.WithTx(ctx, func(tx billing.Store) error {
		learner, course, err := loadPair(ctx, tx, learnerID, courseID)
		if err != nil {
			return err
		}
		if !learner.EnrolledIn(courseID) {
			return &billing.ConflictError{Message: "learner not enrolled in course"}
		}

		learner.Courses = removeCourse(learner.Courses, courseID)
		learner.Discounts.Courses = removeDiscount(learner.Discounts.Courses, courseID)
		course.Learners = removeLearner(course.Learners, learnerID)
		return saveBoth(ctx, tx, learner, course)
	})
}

// SetDiscounts replaces the learner's discount profile and recomputes the
// derived financials atomically. Every percentage is range-checked first;
// overrides must reference courses the learner is enrolled in.
func (s *Service) SetDiscounts(ctx context.Context, learnerID billing.LearnerID, discounts billing.Discounts) error {
	if err := billing.ValidateDiscount("discounts.registration", discounts.Registration); err != nil {
		return err
	}
	for _, cd := range discounts.Courses {
		if err := billing.ValidateDiscount("discounts.courses", cd.Percent); err != nil {
			return err
		}
	}

	return s.Store.WithTx(ctx, func(tx billing.Store) error {
		learner, err := tx.GetLearner(ctx, learnerID)
		if err != nil {
			return err
		}
		if learner == nil || learner.IsDeleted {
			return &billing.NotFoundError{Resource: "learner", ID: string(learnerID)}
		}
		for _, cd := range discounts.Courses {
			if !learner.EnrolledIn(cd.CourseID) {
				return billing.NewValidationError("discounts.courses", "discount references a course the learner is not enrolled in")
			}
		}

		learner.Discounts = discounts
		learner.UpdatedAt = time.Now().UTC()
		if err := billing.Recompute(learner, txCatalog{ctx, tx}); err != nil {
			return err
		}
		return tx.SaveLearner(ctx, learner)
	})
}

// SetCourseDiscount updates a course's default discount percentage.
func (s *Service) SetCourseDiscount(ctx context.Context, courseID billing.CourseID, percent decimal.Decimal) error {
	if err := billing.ValidateDiscount("discount", percent); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx billing.Store) error {
		course, err := tx.GetCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if course == nil || course.IsDeleted {
			return &billing.NotFoundError{Resource: "course", ID: string(courseID)}
		}
		course.Discount = percent
		course.UpdatedAt = time.Now().UTC()
		return tx.SaveCourse(ctx, course)
	})
}

func loadPair(ctx context.Context, tx billing.Store, learnerID billing.LearnerID, courseID billing.CourseID) (*billing.Learner, *billing.Course, error) {
	learner, err := tx.GetLearner(ctx, learnerID)
	if err != nil {
		return nil, nil, err
	}
	if learner == nil || learner.IsDeleted {
		return nil, nil, &billing.NotFoundError{Resource: "learner", ID: string(learnerID)}
	}
	course, err := tx.GetCourse(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	if course == nil || course.IsDeleted {
		return nil, nil, &billing.NotFoundError{Resource: "course", ID: string(courseID)}
	}
	return learner, course, nil
}

func saveBoth(ctx context.Context, tx billing.Store, learner *billing.Learner, course *billing.Course) error {
	now := time.Now().UTC()
	learner.UpdatedAt = now
	course.UpdatedAt = now

	if err := billing.Recompute(learner, txCatalog{ctx, tx}); err != nil {
		return err
	}
	if err := tx.SaveLearner(ctx, learner); err != nil {
		return err
	}
	return tx.SaveCourse(ctx, course)
}

type txCatalog struct {
	ctx context.Context
	tx  billing.Store
}

func (c txCatalog) Course(id billing.CourseID) (*billing.Course, bool) {
	course, err := c.tx.GetCourse(c.ctx, id)
	if err != nil || course == nil {
		return nil, false
	}
	return course, true
}

func removeCourse(ids []billing.CourseID, target billing.CourseID) []billing.CourseID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func removeLearner(ids []billing.LearnerID, target billing.LearnerID) []billing.LearnerID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func removeDiscount(ds []billing.CourseDiscount, target billing.CourseID) []billing.CourseDiscount {
	out := ds[:0]
	for _, d := range ds {
		if d.CourseID != target {
			out = append(out, d)
		}
	}
	return out
}
