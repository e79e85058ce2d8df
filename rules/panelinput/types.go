// Package panelinput holds one typed input per built-in panel. Filling a struct supplies
// every required field, so evaluation through rules.Engine.EvaluateInput cannot fail with
// a missing or mistyped field.
package panelinput

import "github.com/liamcoop/labrules/rules"

// Gender values recognized by the gender-dependent rules
const (
	Male   = "M"
	Female = "F"
)

// BloodPressure is the input of panel 1
type BloodPressure struct {
	Systolic  float64 `json:"Systolic"`
	Diastolic float64 `json:"Diastolic"`
}

func (BloodPressure) Kind() rules.TestKind { return rules.BloodPressure }

func (in BloodPressure) Measurements() rules.Measurements {
	return rules.Measurements{
		"Systolic":  in.Systolic,
		"Diastolic": in.Diastolic,
	}
}

// LipidProfile is the input of panel 2
type LipidProfile struct {
	Cholesterol  float64 `json:"Cholesterol"`
	Triglyceride float64 `json:"Triglyceride"`
	HDL          float64 `json:"HDL"`
	LDL          float64 `json:"LDL"`
}

func (LipidProfile) Kind() rules.TestKind { return rules.LipidProfile }

func (in LipidProfile) Measurements() rules.Measurements {
	return rules.Measurements{
		"Cholesterol":  in.Cholesterol,
		"Triglyceride": in.Triglyceride,
		"HDL":          in.HDL,
		"LDL":          in.LDL,
	}
}

// KidneyHealth is the input of panel 3
type KidneyHealth struct {
	EGFR       float64 `json:"eGFR"`
	Creatinine float64 `json:"Creatinine"`
	Gender     string  `json:"Gender"`
}

func (KidneyHealth) Kind() rules.TestKind { return rules.KidneyHealth }

func (in KidneyHealth) Measurements() rules.Measurements {
	return rules.Measurements{
		"eGFR":       in.EGFR,
		"Creatinine": in.Creatinine,
		"Gender":     in.Gender,
	}
}

// LiverFunction is the input of panel 4. TotalProtein and ALP are required by the panel
// but no rule reads them.
type LiverFunction struct {
	TotalProtein    float64 `json:"Total Protein"`
	Globulin        float64 `json:"Globulin"`
	Albumin         float64 `json:"Albumin"`
	AST             float64 `json:"AST"`
	ALT             float64 `json:"ALT"`
	ALP             float64 `json:"ALP"`
	TotalBilirubin  float64 `json:"Total Bilirubin"`
	DirectBilirubin float64 `json:"Direct Bilirubin"`
	Gender          string  `json:"Gender"`
}

func (LiverFunction) Kind() rules.TestKind { return rules.LiverFunction }

func (in LiverFunction) Measurements() rules.Measurements {
	return rules.Measurements{
		"Total Protein":    in.TotalProtein,
		"Globulin":         in.Globulin,
		"Albumin":          in.Albumin,
		"AST":              in.AST,
		"ALT":              in.ALT,
		"ALP":              in.ALP,
		"Total Bilirubin":  in.TotalBilirubin,
		"Direct Bilirubin": in.DirectBilirubin,
		"Gender":           in.Gender,
	}
}

// UricAcid is the input of panel 5
type UricAcid struct {
	UricAcid float64 `json:"Uric Acid"`
	Gender   string  `json:"Gender"`
}

func (UricAcid) Kind() rules.TestKind { return rules.UricAcid }

func (in UricAcid) Measurements() rules.Measurements {
	return rules.Measurements{
		"Uric Acid": in.UricAcid,
		"Gender":    in.Gender,
	}
}

// CompleteBloodCount is the input of panel 6. Neutrophile and Eosinophile are
// percentages of WBC.
type CompleteBloodCount struct {
	HCT         float64 `json:"HCT"`
	MCV         float64 `json:"MCV"`
	WBC         float64 `json:"WBC"`
	Neutrophile float64 `json:"Neutrophile"`
	Eosinophile float64 `json:"Eosinophile"`
	Monocyte    float64 `json:"Monocyte"`
	PLTCount    float64 `json:"PLT Count"`
	Gender      string  `json:"Gender"`
}

func (CompleteBloodCount) Kind() rules.TestKind { return rules.CompleteBloodCount }

func (in CompleteBloodCount) Measurements() rules.Measurements {
	return rules.Measurements{
		"HCT":         in.HCT,
		"MCV":         in.MCV,
		"WBC":         in.WBC,
		"Neutrophile": in.Neutrophile,
		"Eosinophile": in.Eosinophile,
		"Monocyte":    in.Monocyte,
		"PLT Count":   in.PLTCount,
		"Gender":      in.Gender,
	}
}

var (
	_ rules.Input = BloodPressure{}
	_ rules.Input = LipidProfile{}
	_ rules.Input = KidneyHealth{}
	_ rules.Input = LiverFunction{}
	_ rules.Input = UricAcid{}
	_ rules.Input = CompleteBloodCount{}
)
