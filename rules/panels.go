package rules

// Built-in panel definitions. Tier conditions are CEL expressions over the variables
// declared in each panel's Fields; thresholds are written as doubles since every numeric
// input is bound as a double.

const (
	recBPHigh          = "Avoid caffeinated drinks and consult a doctor."
	recConsultDoctor   = "Consult a doctor."
	recSeekImmediate   = "Seek immediate medical attention."
	recSeekAdvice      = "Seek medical advice."
	recMonitorKidney   = "Monitor kidney function."
	recConsultNoPeriod = "Consult a doctor"
)

// Thai labels used by the complete blood count panel
const (
	thNormal = "ปกติ"

	thAnemiaMild     = "เม็ดเลือดจางเล็กน้อย"
	thAnemiaModerate = "เม็ดเลือดจางปานกลาง"
	thAnemiaSevere   = "เม็ดเลือดจางรุนแรง"
	thRecMoreTests   = "แนะนำตรวจเพิ่มเติม"
	thRecConsult     = "ควรปรึกษาแพทย์"
	thRecUrgent      = "ควรปรึกษาแพทย์โดยด่วน"

	thMCVSmall    = "เม็ดเลือดแดงมีขนาดเล็ก"
	thMCVSmallRec = "อาจเกิดจากขาดธาตุเหล็ก หรือเป็นพาหะธาลัสซีเมีย"
	thMCVLarge    = "เม็ดเลือดแดงมีขนาดใหญ่"
	thMCVLargeRec = "อาจเกิดจากขาดโฟเลต หรือวิตามินบี 12 หรือโรคเลือดบางชนิด"

	thWBCDangerLow    = "เม็ดเลือดขาวต่ำอันตราย"
	thWBCDangerLowRec = "ควรปรึกษาแพทย์ ระวังการติดเชื้อ หลีกเลี่ยงอาหารดิบ"
	thWBCLow          = "เม็ดเลือดขาวต่ำ"
	thWBCHigh         = "เม็ดเลือดขาวสูง"
	thWBCHighRec      = "อาจเกิดจากการติดเชื้อ หากมีไข้สูงหรือไข้เรื้อรัง ควรปรึกษาแพทย์"
	thWBCVeryHigh     = "เม็ดเลือดขาวสูงมาก"

	thEosHigh    = "เม็ดเลือดขาว EOSINOPHILE สูง"
	thEosHighRec = "อาจเกิดจากภูมิแพ้ หอบหืด หรือพยาธิ"

	thMonoHigh    = "MONOCYTE สูง"
	thMonoHighRec = "มักพบหลังติดเชื้อเกิน 2 สัปดาห์ หรือหลังฉีดวัคซีน"

	thPLTLow         = "เกล็ดเลือดต่ำ"
	thPLTLowRec      = "ควรระวังอาการเลือดออกผิดปกติ และควรพบแพทย์"
	thPLTHigh        = "เกล็ดเลือดสูง"
	thPLTHighRec     = "อาจพบในพาหะธาลัสซีเมีย หรือมีอาการไข้เรื้อรัง ควรปรึกษาแพทย์"
	thPLTVeryHigh    = "เกล็ดเลือดสูงมาก"
	thPLTVeryHighRec = "ควรปรึกษาแพทย์เพื่อหาสาเหตุ"
)

var genderField = Field{Key: "Gender", Var: "Gender", Type: Text}

// bloodPressureTiers builds the shared four-tier table for systolic and diastolic
// readings. Anything that is not below the very-high ceiling is dangerously high.
func bloodPressureTiers(v, normalBelow, highBelow, veryHighBelow string) []Tier {
	return []Tier{
		{When: v + " < " + normalBelow, Label: "normal"},
		{When: normalBelow + " <= " + v + " && " + v + " < " + highBelow, Label: "high", Recommendation: rec(recBPHigh)},
		{When: highBelow + " <= " + v + " && " + v + " < " + veryHighBelow, Label: "very high", Recommendation: rec(recConsultDoctor)},
		{When: "true", Label: "dangerously high", Recommendation: rec(recSeekImmediate)},
	}
}

// hctTiers builds the hematocrit table for one gender. Values above the normal band
// match no tier.
func hctTiers(gender, normalLow, normalHigh, mildLow string) []Tier {
	g := `Gender == "` + gender + `"`
	return []Tier{
		{When: g + " && " + normalLow + " <= HCT && HCT <= " + normalHigh, Label: thNormal},
		{When: g + " && " + mildLow + " <= HCT && HCT < " + normalLow, Label: thAnemiaMild, Recommendation: rec(thRecMoreTests)},
		{When: g + " && 27.0 <= HCT && HCT < " + mildLow, Label: thAnemiaModerate, Recommendation: rec(thRecConsult)},
		{When: g + " && HCT < 27.0", Label: thAnemiaSevere, Recommendation: rec(thRecUrgent)},
	}
}

// DefaultPanels returns fresh definitions of the six built-in panels
func DefaultPanels() []*Panel {
	return []*Panel{
		{
			Kind: BloodPressure,
			Name: BloodPressure.String(),
			Fields: []Field{
				{Key: "Systolic", Var: "Systolic", Type: Number},
				{Key: "Diastolic", Var: "Diastolic", Type: Number},
			},
			Rules: []FieldRule{
				{Key: "systolic", Tiers: bloodPressureTiers("Systolic", "140.0", "160.0", "180.0")},
				{Key: "diastolic", Tiers: bloodPressureTiers("Diastolic", "90.0", "110.0", "120.0")},
			},
		},
		{
			Kind: LipidProfile,
			Name: LipidProfile.String(),
			Fields: []Field{
				{Key: "Cholesterol", Var: "Cholesterol", Type: Number},
				{Key: "Triglyceride", Var: "Triglyceride", Type: Number},
				{Key: "HDL", Var: "HDL", Type: Number},
				{Key: "LDL", Var: "LDL", Type: Number},
			},
			Rules: []FieldRule{
				{Key: "cholesterol", Tiers: []Tier{
					{When: "Cholesterol < 200.0", Label: "normal"},
					{When: "true", Label: "high", Recommendation: rec("Reduce intake of fats and cholesterol.")},
				}},
				{Key: "triglyceride", Tiers: []Tier{
					{When: "Triglyceride < 150.0", Label: "normal"},
					{When: "true", Label: "high", Recommendation: rec("Reduce intake of sugars and fats.")},
				}},
				{Key: "hdl", Tiers: []Tier{
					{When: "HDL < 40.0", Label: "low", Recommendation: rec("Increase physical activity.")},
					{When: "true", Label: "normal"},
				}},
				{Key: "ldl", Tiers: []Tier{
					{When: "LDL <= 100.0", Label: "normal"},
					{When: "LDL > 190.0", Label: "very high", Recommendation: rec("Medication may be needed.")},
					{When: "true", Label: "high", Recommendation: rec("Reduce saturated fats.")},
				}},
			},
		},
		{
			Kind: KidneyHealth,
			Name: KidneyHealth.String(),
			Fields: []Field{
				{Key: "eGFR", Var: "eGFR", Type: Number},
				{Key: "Creatinine", Var: "Creatinine", Type: Number},
				genderField,
			},
			Rules: []FieldRule{
				{Key: "eGFR", Tiers: []Tier{
					{When: "eGFR < 15.0", Label: "Stage 5", Recommendation: rec(recSeekAdvice)},
					{When: "15.0 <= eGFR && eGFR < 30.0", Label: "Stage 4", Recommendation: rec(recSeekAdvice)},
					{When: "30.0 <= eGFR && eGFR < 60.0", Label: "Stage 3", Recommendation: rec(recSeekAdvice)},
					{When: "60.0 <= eGFR && eGFR <= 90.0", Label: "Stage 2", Recommendation: rec(recMonitorKidney)},
					{When: "true", Label: "Stage 1", Recommendation: rec(recMonitorKidney)},
				}},
				// Genders other than M and F match no tier.
				{Key: "creatinine", Tiers: []Tier{
					{When: `Gender == "M" && Creatinine <= 1.17`, Label: "normal"},
					{When: `Gender == "M"`, Label: "high", Recommendation: rec(recSeekAdvice)},
					{When: `Gender == "F" && Creatinine <= 0.95`, Label: "normal"},
					{When: `Gender == "F"`, Label: "high", Recommendation: rec(recSeekAdvice)},
				}},
			},
		},
		{
			Kind: LiverFunction,
			Name: LiverFunction.String(),
			Fields: []Field{
				{Key: "Total Protein", Var: "TotalProtein", Type: Number},
				{Key: "Globulin", Var: "Globulin", Type: Number},
				{Key: "Albumin", Var: "Albumin", Type: Number},
				{Key: "AST", Var: "AST", Type: Number},
				{Key: "ALT", Var: "ALT", Type: Number},
				{Key: "ALP", Var: "ALP", Type: Number},
				{Key: "Total Bilirubin", Var: "TotalBilirubin", Type: Number},
				{Key: "Direct Bilirubin", Var: "DirectBilirubin", Type: Number},
				genderField,
			},
			Rules: []FieldRule{
				{Key: "globulin", Tiers: []Tier{
					{When: "2.4 <= Globulin && Globulin <= 3.9", Label: "normal"},
					{When: "true", Label: "abnormal", Recommendation: rec(recConsultDoctor)},
				}},
				{Key: "albumin", Tiers: []Tier{
					{When: "Albumin < 3.3", Label: "low", Recommendation: rec(recSeekAdvice)},
					{When: "3.3 <= Albumin && Albumin <= 5.2", Label: "normal"},
				}},
				// Anything but "M" takes the female enzyme limits.
				{Key: "AST", Tiers: []Tier{
					{When: `Gender == "M" && AST > 40.0`, Label: "high", Recommendation: rec(recConsultDoctor)},
					{When: `Gender == "M"`, Label: "normal"},
					{When: "AST > 32.0", Label: "high", Recommendation: rec(recConsultDoctor)},
					{When: "true", Label: "normal"},
				}},
				{Key: "ALT", Tiers: []Tier{
					{When: `Gender == "M" && ALT > 41.0`, Label: "high", Recommendation: rec(recConsultDoctor)},
					{When: `Gender == "M"`, Label: "normal"},
					{When: "ALT > 33.0", Label: "high", Recommendation: rec(recConsultDoctor)},
					{When: "true", Label: "normal"},
				}},
				// TODO: confirm bilirubin thresholds with the lab; any positive reading is flagged high today.
				{Key: "bilirubin", Tiers: []Tier{
					{When: "TotalBilirubin > 0.0 || DirectBilirubin > 0.0", Label: "high"},
					{When: "true", Label: "normal"},
				}},
			},
		},
		{
			Kind: UricAcid,
			Name: UricAcid.String(),
			Fields: []Field{
				{Key: "Uric Acid", Var: "UricAcid", Type: Number},
				genderField,
			},
			Rules: []FieldRule{
				{Key: "uric_acid", Tiers: []Tier{
					{When: `Gender == "M" && UricAcid > 7.0`, Label: "high", Recommendation: rec(recConsultNoPeriod)},
					{When: `Gender == "M"`, Label: "normal"},
					{When: `Gender == "F" && UricAcid > 6.0`, Label: "high", Recommendation: rec(recConsultNoPeriod)},
					{When: `Gender == "F"`, Label: "normal"},
				}},
			},
		},
		{
			Kind: CompleteBloodCount,
			Name: CompleteBloodCount.String(),
			Fields: []Field{
				{Key: "HCT", Var: "HCT", Type: Number},
				{Key: "MCV", Var: "MCV", Type: Number},
				{Key: "WBC", Var: "WBC", Type: Number},
				{Key: "Neutrophile", Var: "Neutrophile", Type: Number},
				{Key: "Eosinophile", Var: "Eosinophile", Type: Number},
				{Key: "Monocyte", Var: "Monocyte", Type: Number},
				{Key: "PLT Count", Var: "PLTCount", Type: Number},
				genderField,
			},
			Rules: []FieldRule{
				{Key: "HCT", Tiers: append(hctTiers("M", "42.0", "54.0", "33.0"), hctTiers("F", "36.0", "48.0", "33.0")...)},
				{Key: "MCV", Tiers: []Tier{
					{When: "MCV < 80.0", Label: thMCVSmall, Recommendation: rec(thMCVSmallRec)},
					{When: "80.0 <= MCV && MCV <= 100.0", Label: thNormal},
					{When: "MCV > 100.0", Label: thMCVLarge, Recommendation: rec(thMCVLargeRec)},
				}},
				// Below the band, the absolute neutrophil count separates dangerous from mild.
				{Key: "WBC", Tiers: []Tier{
					{When: "6000.0 <= WBC && WBC <= 10000.0", Label: thNormal},
					{When: "WBC < 6000.0 && WBC * Neutrophile / 100.0 < 1000.0", Label: thWBCDangerLow, Recommendation: rec(thWBCDangerLowRec)},
					{When: "WBC < 6000.0", Label: thWBCLow},
					{When: "10000.0 < WBC && WBC <= 20000.0", Label: thWBCHigh, Recommendation: rec(thWBCHighRec)},
					{When: "WBC > 20000.0", Label: thWBCVeryHigh, Recommendation: rec(thRecUrgent)},
				}},
				{Key: "Eosinophile", Tiers: []Tier{
					{When: "WBC * Eosinophile / 100.0 > 500.0", Label: thEosHigh, Recommendation: rec(thEosHighRec)},
				}},
				{Key: "Monocyte", Tiers: []Tier{
					{When: "2.0 <= Monocyte && Monocyte <= 6.0", Label: thNormal},
					{When: "Monocyte > 6.0", Label: thMonoHigh, Recommendation: rec(thMonoHighRec)},
				}},
				{Key: "PLT Count", Tiers: []Tier{
					{When: "PLTCount < 100000.0", Label: thPLTLow, Recommendation: rec(thPLTLowRec)},
					{When: "100000.0 <= PLTCount && PLTCount <= 450000.0", Label: thNormal},
					{When: "450000.0 < PLTCount && PLTCount <= 600000.0", Label: thPLTHigh, Recommendation: rec(thPLTHighRec)},
					{When: "PLTCount > 600000.0", Label: thPLTVeryHigh, Recommendation: rec(thPLTVeryHighRec)},
				}},
			},
		},
	}
}
