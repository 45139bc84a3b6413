package hls

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineKind distinguishes playlist tags and comments from segment URIs.
type LineKind int

const (
	LineTag LineKind = iota
	LineURI
	LineBlank
)

type Line struct {
	Kind  LineKind
	Value string
}

// Playlist is a parsed media playlist: an ordered sequence of tag and
// URI lines. Keeping the structure instead of regexp-rewriting the raw
// text means malformed input fails loudly instead of corrupting output.
type Playlist struct {
	Lines []Line
}

var ErrNotPlaylist = errors.New("not an extended m3u playlist")

// Parse reads a playlist line by line. The first non-blank line must be
// the #EXTM3U header.
func Parse(r io.Reader) (*Playlist, error) {
	scanner := bufio.NewScanner(r)
	p := &Playlist{}
	seenHeader := false

	for scanner.Scan() {
		raw := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(raw)

		switch {
		case trimmed == "":
			p.Lines = append(p.Lines, Line{Kind: LineBlank})
		case strings.HasPrefix(trimmed, "#"):
			if !seenHeader {
				if trimmed != "#EXTM3U" {
					return nil, ErrNotPlaylist
				}
				seenHeader = true
			}
			p.Lines = append(p.Lines, Line{Kind: LineTag, Value: trimmed})
		default:
			if !seenHeader {
				return nil, ErrNotPlaylist
			}
			p.Lines = append(p.Lines, Line{Kind: LineURI, Value: trimmed})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !seenHeader {
		return nil, ErrNotPlaylist
	}
	return p, nil
}

// RewriteURIs maps every segment URI through fn, leaving tags untouched.
func (p *Playlist) RewriteURIs(fn func(string) string) {
	for i := range p.Lines {
		if p.Lines[i].Kind == LineURI {
			p.Lines[i].Value = fn(p.Lines[i].Value)
		}
	}
}

// Segments returns the URI lines in order.
func (p *Playlist) Segments() []string {
	var uris []string
	for _, l := range p.Lines {
		if l.Kind == LineURI {
			uris = append(uris, l.Value)
		}
	}
	return uris
}

func (p *Playlist) String() string {
	var b strings.Builder
	for _, l := range p.Lines {
		b.WriteString(l.Value)
		b.WriteByte('\n')
	}
	return b.String()
}
