package matching

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		model string
		want  Category
	}{
		{"MS225-48FP", CategorySwitch},
		{"MR32", CategoryAccessPoint},
		{"MX64W", CategoryGateway},
		{"MV12", CategoryCamera},
		{"", CategoryUnknown},
		{"   ", CategoryUnknown},
		{"VMX-S", CategoryAppliance},
		{"C9300-24P", CategorySwitch},
		{"CW9166I", CategoryAccessPoint},
		{"Z3C", CategoryAppliance},
		{"MT10", CategorySensor},
		{"MG41E", CategoryCellular},
		{"ms120-8", CategorySwitch},
		{"  mr46 ", CategoryAccessPoint},
		{"vmx-m", CategoryAppliance},
		{"AP-515", CategoryUnknown},
		{"M", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := Classify(tt.model); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range AllCategories() {
		got, ok := ParseCategory(string(c))
		if !ok || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, ok)
		}
	}
	for _, s := range []string{"access_point", "AccessPoint", "ap"} {
		if _, ok := ParseCategory(s); ok {
			t.Errorf("ParseCategory(%q) should reject unknown spellings", s)
		}
	}
	if c, _ := ParseCategory("accessPoint"); c != CategoryAccessPoint {
		t.Errorf("ParseCategory(accessPoint) = %q, want %q", c, CategoryAccessPoint)
	}
}
