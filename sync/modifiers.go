package sync

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
)

func init() {

	gjson.AddModifier("pathJoinURL", func(json, arg string) string {
		var result string
		path := gjson.Parse(json)
		if !path.Exists() {
			return ""
		}
		if s, err := url.JoinPath(arg, path.String()); err == nil {
			result = s
		}
		return fmt.Sprintf(`"%s"`, result)
	})

	gjson.AddModifier("contains", func(json, arg string) string {
		res := gjson.Parse(json)
		if res.IsArray() {
			values := res.Array()
			for _, v := range values {
				if strings.Contains(v.String(), arg) {
					return fmt.Sprintf("%t", true)
				}
			}
			return fmt.Sprintf("%t", false)
		}
		return fmt.Sprintf("%t", strings.Contains(res.String(), arg))
	})

	// phone rewrites a number to its national form, e.g. +31612345678 -> 0612345678.
	// The argument is the default country calling code.
	gjson.AddModifier("phone", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() || res.String() == "" {
			return ""
		}
		number := strings.TrimSpace(res.String())
		region := "NL"
		if i, err := strconv.Atoi(arg); err == nil {
			region = libphonenumber.GetRegionCodeForCountryCode(i)
		}
		num, err := libphonenumber.Parse(number, region)
		if err != nil {
			return fmt.Sprintf(`"%s"`, number)
		}
		if libphonenumber.GetRegionCodeForNumber(num) != region {
			// foreign numbers keep their international form
			return fmt.Sprintf(`"%s"`, libphonenumber.Format(num, libphonenumber.E164))
		}
		national := libphonenumber.Format(num, libphonenumber.NATIONAL)
		national = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(national)
		return fmt.Sprintf(`"%s"`, national)
	})

	gjson.AddModifier("countryName", func(json, arg string) string {
		s := gjson.Parse(json).String()
		c := countries.ByName(s) // will match on Alpha-2 / Alpha-3 / Name
		if countries.Unknown == c {
			return ""
		}
		return fmt.Sprintf(`"%s"`, c.String()) // returns Country Name
	})

	// countryAlpha2 normalises a country name or code to its ISO 3166 alpha-2 code.
	gjson.AddModifier("countryAlpha2", func(json, arg string) string {
		s := gjson.Parse(json).String()
		c := countries.ByName(s)
		if countries.Unknown == c {
			return ""
		}
		return fmt.Sprintf(`"%s"`, c.Alpha2())
	})

	gjson.AddModifier("now", func(json, arg string) string {
		layout := time.RFC3339
		if arg != "" {
			layout = arg
		}
		return fmt.Sprintf(`"%s"`, time.Now().UTC().Format(layout))
	})

}
