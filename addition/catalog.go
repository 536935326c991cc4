package addition

import (
	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// STANDARD CATALOG - Presets for child development / after-school services
// =============================================================================

// Codes referenced by rules elsewhere in the engine.
const (
	SpecialistSupport  generic.AdditionCode = "specialist_support"
	Transport          generic.AdditionCode = "transport"
	FamilySupport1     generic.AdditionCode = "family_support_1"
	FamilySupport2     generic.AdditionCode = "family_support_2"
	FamilySupport3     generic.AdditionCode = "family_support_3"
	FamilySupport4     generic.AdditionCode = "family_support_4"
	AgencyCooperation1 generic.AdditionCode = "agency_cooperation_1"
	AgencyCooperation2 generic.AdditionCode = "agency_cooperation_2"

	IndividualSupport1     generic.AdditionCode = "individual_support_1"
	IndividualSupport1High generic.AdditionCode = "individual_support_1_high"
	IndividualSupport2     generic.AdditionCode = "individual_support_2"
	BehaviorSupport1       generic.AdditionCode = "behavior_support_1"
	BehaviorSupport2       generic.AdditionCode = "behavior_support_2"

	StaffAllocation1Fulltime generic.AdditionCode = "staff_allocation_1_fulltime"
	StaffAllocation1Convert  generic.AdditionCode = "staff_allocation_1_convert"
	StaffAllocation2Fulltime generic.AdditionCode = "staff_allocation_2_fulltime"
	StaffAllocation2Convert  generic.AdditionCode = "staff_allocation_2_convert"
	StaffAllocation3         generic.AdditionCode = "staff_allocation_3"
	SpecialistStructure      generic.AdditionCode = "specialist_structure"
	WelfareProfessional1     generic.AdditionCode = "welfare_professional_1"
	WelfareProfessional2     generic.AdditionCode = "welfare_professional_2"
	WelfareProfessional3     generic.AdditionCode = "welfare_professional_3"
	TreatmentImprovement1    generic.AdditionCode = "treatment_improvement_1"
	TreatmentImprovement2    generic.AdditionCode = "treatment_improvement_2"
	TreatmentImprovement3    generic.AdditionCode = "treatment_improvement_3"
	TreatmentImprovement4    generic.AdditionCode = "treatment_improvement_4"
)

// PlannableCodes is the fixed allow-list of additions entered as monthly
// planned counts.
var PlannableCodes = []generic.AdditionCode{
	SpecialistSupport,
	Transport,
	FamilySupport1,
	FamilySupport2,
	FamilySupport3,
	FamilySupport4,
	AgencyCooperation1,
	AgencyCooperation2,
}

// IsPlannableCode reports whether code is on the plannable allow-list.
func IsPlannableCode(code generic.AdditionCode) bool {
	for _, c := range PlannableCodes {
		if c == code {
			return true
		}
	}
	return false
}

// StandardCatalog returns the built-in rule table.
func StandardCatalog() *Catalog {
	return MustCatalog(StandardAdditions()...)
}

// StandardAdditions returns the built-in additions in declaration order.
// Exclusive group members are declared highest value first.
func StandardAdditions() []Addition {
	return []Addition{
		// Plannable, performance-based
		plannable(SpecialistSupport, "専門的支援実施加算", "専門支援", 150, 4),
		plannable(Transport, "送迎加算", "送迎", 54, 0).withDaily(2),
		plannable(FamilySupport1, "家族支援加算(I)", "家族(I)", 300, 2),
		plannable(FamilySupport2, "家族支援加算(II)", "家族(II)", 200, 2),
		plannable(FamilySupport3, "家族支援加算(III)", "家族(III)", 80, 4),
		plannable(FamilySupport4, "家族支援加算(IV)", "家族(IV)", 60, 4),
		plannable(AgencyCooperation1, "関係機関連携加算(I)", "連携(I)", 250, 1),
		plannable(AgencyCooperation2, "関係機関連携加算(II)", "連携(II)", 200, 1),

		// Automatic, driven by child attributes
		auto(IndividualSupport1High, "個別サポート加算(I) 重症", "個別(I)重", 120, "individual_support_1"),
		auto(IndividualSupport1, "個別サポート加算(I)", "個別(I)", 90, "individual_support_1"),
		auto(IndividualSupport2, "個別サポート加算(II)", "個別(II)", 150, ""),
		auto(BehaviorSupport2, "強度行動障害児支援加算(II)", "強行(II)", 250, "behavior_support"),
		auto(BehaviorSupport1, "強度行動障害児支援加算(I)", "強行(I)", 200, "behavior_support"),

		// Facility presets, structural
		facility(StaffAllocation1Fulltime, "児童指導員等加配加算(I) 常勤専従・経験5年以上", "加配(I)常専5年", 187, "staff_allocation"),
		facility(StaffAllocation2Fulltime, "児童指導員等加配加算(I) 常勤専従・経験5年未満", "加配(I)常専", 152, "staff_allocation"),
		facility(StaffAllocation1Convert, "児童指導員等加配加算(I) 常勤換算・経験5年以上", "加配(I)換算5年", 123, "staff_allocation"),
		facility(StaffAllocation2Convert, "児童指導員等加配加算(I) 常勤換算・経験5年未満", "加配(I)換算", 107, "staff_allocation"),
		facility(StaffAllocation3, "児童指導員等加配加算(II) その他従業者", "加配(II)", 90, "staff_allocation"),
		facility(SpecialistStructure, "専門的支援体制加算", "専門体制", 123, ""),
		facility(WelfareProfessional1, "福祉専門職員配置等加算(I)", "福祉専門(I)", 15, "welfare_professional"),
		facility(WelfareProfessional2, "福祉専門職員配置等加算(II)", "福祉専門(II)", 10, "welfare_professional"),
		facility(WelfareProfessional3, "福祉専門職員配置等加算(III)", "福祉専門(III)", 6, "welfare_professional"),

		// Facility presets, percentage of base
		percentage(TreatmentImprovement1, "福祉・介護職員等処遇改善加算(I)", "処遇(I)", "14.0"),
		percentage(TreatmentImprovement2, "福祉・介護職員等処遇改善加算(II)", "処遇(II)", "10.0"),
		percentage(TreatmentImprovement3, "福祉・介護職員等処遇改善加算(III)", "処遇(III)", "8.1"),
		percentage(TreatmentImprovement4, "福祉・介護職員等処遇改善加算(IV)", "処遇(IV)", "5.5"),
	}
}

func plannable(code generic.AdditionCode, name, short string, units int64, perMonth int) Addition {
	return Addition{
		Code: code, Name: name, ShortName: short,
		Category: CategoryPerformance, Kind: KindPlannable,
		Units: units, UnitType: UnitFixed,
		MaxTimesPerDay: 1, MaxTimesPerMonth: perMonth,
	}
}

func auto(code generic.AdditionCode, name, short string, units int64, group string) Addition {
	return Addition{
		Code: code, Name: name, ShortName: short,
		Category: CategoryPerformance, Kind: KindAuto,
		Units: units, UnitType: UnitFixed,
		MaxTimesPerDay: 1, ExclusiveGroup: group,
	}
}

func facility(code generic.AdditionCode, name, short string, units int64, group string) Addition {
	return Addition{
		Code: code, Name: name, ShortName: short,
		Category: CategoryStructural, Kind: KindFacility,
		Units: units, UnitType: UnitFixed,
		MaxTimesPerDay: 1, ExclusiveGroup: group,
	}
}

func percentage(code generic.AdditionCode, name, short, rate string) Addition {
	return Addition{
		Code: code, Name: name, ShortName: short,
		Category: CategoryStructural, Kind: KindFacility,
		UnitType: UnitPercentage, PercentageRate: decimal.RequireFromString(rate),
		MaxTimesPerDay: 1, ExclusiveGroup: "treatment_improvement",
	}
}

func (a Addition) withDaily(n int) Addition {
	a.MaxTimesPerDay = n
	return a
}
