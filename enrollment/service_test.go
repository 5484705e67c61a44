package enrollment_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/billing/store"
	"github.com/warp/tuition-engine/enrollment"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFixture(t *testing.T) (*enrollment.Service, *store.Memory, *billing.Learner, *billing.Course) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	learner := billing.NewLearner("Amina", "Diallo", "amina@example.com", "+220123456")
	course := billing.NewCourse("Algebra", "Linear algebra basics", "12 weeks", dec("100"))
	require.NoError(t, mem.SaveLearner(ctx, learner))
	require.NoError(t, mem.SaveCourse(ctx, course))

	return enrollment.NewService(mem), mem, learner, course
}

// =============================================================================
// ENROLL / WITHDRAW SYMMETRY
// =============================================================================

func TestEnroll_BothSidesUpdated(t *testing.T) {
	// GIVEN: A learner and a course with no relationship
	// WHEN: Enrolling
	// THEN: Learner lists the course AND the course lists the learner,
	//       and the learner's financials reflect the new fee

	svc, mem, learner, course := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Enroll(ctx, learner.ID, course.ID))

	gotLearner, err := mem.GetLearner(ctx, learner.ID)
	require.NoError(t, err)
	gotCourse, err := mem.GetCourse(ctx, course.ID)
	require.NoError(t, err)

	assert.True(t, gotLearner.EnrolledIn(course.ID))
	assert.True(t, gotCourse.HasLearner(learner.ID))
	assert.True(t, dec("100").Equal(gotLearner.TotalCourseFees))
	// 10 registration + 100 course
	assert.True(t, dec("110").Equal(gotLearner.Balance), "got %s", gotLearner.Balance)
}

func TestEnroll_Twice_Conflict(t *testing.T) {
	// GIVEN: An enrolled learner
	// WHEN: Enrolling in the same course again
	// THEN: Conflict; membership unchanged on both sides

	svc, mem, learner, course := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Enroll(ctx, learner.ID, course.ID))
	err := svc.Enroll(ctx, learner.ID, course.ID)
	assert.Error(t, err)
	assert.True(t, billing.IsConflict(err))

	gotLearner, _ := mem.GetLearner(ctx, learner.ID)
	gotCourse, _ := mem.GetCourse(ctx, course.ID)
	assert.Len(t, gotLearner.Courses, 1)
	assert.Len(t, gotCourse.Learners, 1)
}

func TestEnroll_MissingCourse(t *testing.T) {
	// GIVEN: A course ID that does not exist
	// WHEN: Enrolling
	// THEN: NotFoundError and no learner mutation

	svc, mem, learner, _ := newFixture(t)
	ctx := context.Background()

	err := svc.Enroll(ctx, learner.ID, "ghost")
	assert.Error(t, err)
	assert.True(t, billing.IsNotFound(err))

	gotLearner, _ := mem.GetLearner(ctx, learner.ID)
	assert.Empty(t, gotLearner.Courses)
}

func TestEnroll_SoftDeletedCourse(t *testing.T) {
	// GIVEN: A soft-deleted course
	// WHEN: Enrolling
	// THEN: NotFoundError; deleted records cannot gain enrollments

	svc, mem, learner, course := newFixture(t)
	ctx := context.Background()

	course.IsDeleted = true
	require.NoError(t, mem.SaveCourse(ctx, course))

	err := svc.Enroll(ctx, learner.ID, course.ID)
	assert.Error(t, err)
	assert.True(t, billing.IsNotFound(err))
}

func TestWithdraw_BothSidesAndDiscountDropped(t *testing.T) {
	// GIVEN: An enrolled learner with a per-course discount override
	// WHEN: Withdrawing
	// THEN: Both sides forget each other, the override is dropped, and the
	//       financials shrink back to the registration fee

	svc, mem, learner, course := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Enroll(ctx, learner.ID, course.ID))
	require.NoError(t, svc.SetDiscounts(ctx, learner.ID, billing.Discounts{
		Registration: decimal.Zero,
		Courses:      []billing.CourseDiscount{{CourseID: course.ID, Percent: dec("15")}},
	}))

	require.NoError(t, svc.Withdraw(ctx, learner.ID, course.ID))

	gotLearner, err := mem.GetLearner(ctx, learner.ID)
	require.NoError(t, err)
	gotCourse, err := mem.GetCourse(ctx, course.ID)
	require.NoError(t, err)

	assert.False(t, gotLearner.EnrolledIn(course.ID))
	assert.False(t, gotCourse.HasLearner(learner.ID))
	assert.Empty(t, gotLearner.Discounts.Courses, "override goes with the membership")
	assert.True(t, gotLearner.TotalCourseFees.IsZero())
	assert.True(t, dec("10").Equal(gotLearner.Balance))
}

func TestWithdraw_NotEnrolled_Conflict(t *testing.T) {
	// GIVEN: A learner with no enrollment
	// WHEN: Withdrawing
	// THEN: Conflict

	svc, _, learner, course := newFixture(t)

	err := svc.Withdraw(context.Background(), learner.ID, course.ID)
	assert.Error(t, err)
	assert.True(t, billing.IsConflict(err))
}

// =============================================================================
// DISCOUNT PROFILE
// =============================================================================

func TestSetDiscounts_RecomputesFinancials(t *testing.T) {
	// GIVEN: An enrolled learner paying full price (balance 110)
	// WHEN: Setting 10% registration + 15% course discounts
	// THEN: Balance recomputes to 9 + 85 = 94

	svc, mem, learner, course := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Enroll(ctx, learner.ID, course.ID))
	require.NoError(t, svc.SetDiscounts(ctx, learner.ID, billing.Discounts{
		Registration: dec("10"),
		Courses:      []billing.CourseDiscount{{CourseID: course.ID, Percent: dec("15")}},
	}))

	gotLearner, err := mem.GetLearner(ctx, learner.ID)
	require.NoError(t, err)
	assert.True(t, dec("85").Equal(gotLearner.TotalCourseFees))
	assert.True(t, dec("94").Equal(gotLearner.Balance))
}

func TestSetDiscounts_OutOfRange(t *testing.T) {
	// GIVEN: Discount percentages outside [0,100]
	// WHEN: Setting them
	// THEN: ValidationError before anything is written

	svc, mem, learner, course := newFixture(t)
	ctx := context.Background()
	require.NoError(t, svc.Enroll(ctx, learner.ID, course.ID))

	err := svc.SetDiscounts(ctx, learner.ID, billing.Discounts{Registration: dec("150")})
	assert.Error(t, err)
	assert.True(t, billing.IsValidation(err))

	err = svc.SetDiscounts(ctx, learner.ID, billing.Discounts{
		Courses: []billing.CourseDiscount{{CourseID: course.ID, Percent: dec("-5")}},
	})
	assert.Error(t, err)
	assert.True(t, billing.IsValidation(err))

	gotLearner, _ := mem.GetLearner(ctx, learner.ID)
	assert.True(t, gotLearner.Discounts.Registration.IsZero(), "rejected profile must not stick")
}

func TestSetDiscounts_OverrideForUnenrolledCourse(t *testing.T) {
	// GIVEN: A discount override referencing a course the learner is not in
	// WHEN: Setting the profile
	// THEN: ValidationError

	svc, _, learner, course := newFixture(t)

	err := svc.SetDiscounts(context.Background(), learner.ID, billing.Discounts{
		Courses: []billing.CourseDiscount{{CourseID: course.ID, Percent: dec("15")}},
	})
	assert.Error(t, err)
	assert.True(t, billing.IsValidation(err))
}

func TestSetCourseDiscount(t *testing.T) {
	// GIVEN: A course at full price
	// WHEN: Setting a 20% course-level discount
	// THEN: The discounted price reflects it; out-of-range is rejected

	svc, mem, _, course := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetCourseDiscount(ctx, course.ID, dec("20")))

	gotCourse, err := mem.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.True(t, dec("80").Equal(gotCourse.DiscountedPrice()))

	err = svc.SetCourseDiscount(ctx, course.ID, dec("120"))
	assert.Error(t, err)
	assert.True(t, billing.IsValidation(err))
}
