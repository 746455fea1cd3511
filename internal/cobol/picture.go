package cobol

import "strings"

// JavaTypeForPicture infers the Java field type for a PIC clause, preserving
// semantic width and precision: alphanumeric pictures map to String, decimal
// pictures (an implied V or explicit point) to BigDecimal, and integral
// pictures to the narrowest primitive that holds the declared digit count.
func JavaTypeForPicture(pic string) string {
	pic = strings.ToUpper(strings.TrimSpace(pic))
	if pic == "" {
		return "String"
	}

	if strings.ContainsAny(pic, "XA") {
		return "String"
	}

	if strings.Contains(pic, "9") {
		if strings.Contains(pic, "V") || strings.Contains(pic, ".") {
			return "BigDecimal"
		}
		switch digits := pictureDigits(pic); {
		case digits <= 4:
			return "short"
		case digits <= 9:
			return "int"
		default:
			return "long"
		}
	}

	if strings.HasPrefix(pic, "S") {
		return "int"
	}

	return "String"
}

// pictureDigits counts the declared numeric width of a PIC clause, expanding
// repeat factors such as 9(5).
func pictureDigits(pic string) int {
	digits := 0
	for i := 0; i < len(pic); i++ {
		if pic[i] != '9' {
			continue
		}
		digits++
		// 9(n) repeat factor
		if i+1 < len(pic) && pic[i+1] == '(' {
			end := strings.IndexByte(pic[i+1:], ')')
			if end > 1 {
				n := 0
				for _, r := range pic[i+2 : i+1+end] {
					if r < '0' || r > '9' {
						n = 0
						break
					}
					n = n*10 + int(r-'0')
				}
				if n > 0 {
					digits += n - 1
				}
				i += end + 1
			}
		}
	}
	return digits
}

// PictureWidth reports the total declared character width of a PIC clause.
// Test synthesis uses it to derive boundary inputs.
func PictureWidth(pic string) int {
	pic = strings.ToUpper(strings.TrimSpace(pic))
	width := 0
	for i := 0; i < len(pic); i++ {
		c := pic[i]
		switch c {
		case 'X', 'A', '9':
			width++
			if i+1 < len(pic) && pic[i+1] == '(' {
				end := strings.IndexByte(pic[i+1:], ')')
				if end > 1 {
					n := 0
					for _, r := range pic[i+2 : i+1+end] {
						if r < '0' || r > '9' {
							n = 0
							break
						}
						n = n*10 + int(r-'0')
					}
					if n > 0 {
						width += n - 1
					}
					i += end + 1
				}
			}
		}
	}
	return width
}
