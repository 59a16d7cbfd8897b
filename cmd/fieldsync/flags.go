package main

import (
	"fmt"
	"strconv"
	"strings"
)

// photoFlag is one parsed --photo value
type photoFlag struct {
	Question    string
	Path        string
	Coordinates string
}

// parseAnswers turns question=value pairs into an answers map.
func parseAnswers(pairs []string) (map[string]any, error) {
	answers := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		question, value, ok := strings.Cut(pair, "=")
		question = strings.TrimSpace(question)
		if !ok || question == "" {
			return nil, fmt.Errorf("invalid answer %q: expected question=value", pair)
		}
		if _, dup := answers[question]; dup {
			return nil, fmt.Errorf("question %q answered twice", question)
		}
		answers[question] = value
	}
	return answers, nil
}

// parsePhotoFlag parses question=path with an optional @lat,lng suffix.
// A trailing @ part that is not a coordinate pair stays in the path.
func parsePhotoFlag(raw string) (photoFlag, error) {
	question, path, ok := strings.Cut(raw, "=")
	question = strings.TrimSpace(question)
	path = strings.TrimSpace(path)
	if !ok || question == "" || path == "" {
		return photoFlag{}, fmt.Errorf("invalid photo %q: expected question=path[@lat,lng]", raw)
	}

	pf := photoFlag{Question: question, Path: path}
	if at := strings.LastIndex(path, "@"); at > 0 {
		if coords, ok := parseCoordinates(path[at+1:]); ok {
			pf.Path = path[:at]
			pf.Coordinates = coords
		}
	}
	return pf, nil
}

// parseCoordinates normalizes "lat,lng" to "lat, lng".
func parseCoordinates(s string) (string, bool) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return "", false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return "", false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return "", false
	}
	return strings.TrimSpace(latStr) + ", " + strings.TrimSpace(lngStr), true
}
