package geocode

import "strconv"

const maxAddressLen = 500

// ValidateAddress aplica os limites do parâmetro address antes de qualquer
// chamada ao upstream.
func ValidateAddress(address string) error {
	if address == "" {
		return &InputError{Msg: "Missing address parameter"}
	}
	if len(address) > maxAddressLen {
		return &InputError{Msg: "Address too long (max 500 characters)"}
	}
	return nil
}

// ValidateCoordinates valida lat/lng como floats dentro das faixas geográficas.
func ValidateCoordinates(lat, lng string) error {
	if lat == "" || lng == "" {
		return &InputError{Msg: "Missing lat or lng parameter"}
	}
	latF, errLat := strconv.ParseFloat(lat, 64)
	lngF, errLng := strconv.ParseFloat(lng, 64)
	if errLat != nil || errLng != nil {
		return &InputError{Msg: "Invalid coordinate format"}
	}
	// comparações invertidas: NaN falha as duas e cai na rejeição.
	if !(latF >= -90 && latF <= 90) {
		return &InputError{Msg: "Latitude must be between -90 and 90"}
	}
	if !(lngF >= -180 && lngF <= 180) {
		return &InputError{Msg: "Longitude must be between -180 and 180"}
	}
	return nil
}
