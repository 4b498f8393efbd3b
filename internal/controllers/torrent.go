package controllers

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/anacrolix/torrent/metainfo"
)

// MagnetFromTorrent parses a .torrent file and builds a magnet from the SHA-1
// of its raw info dictionary, with the torrent name as display name.
func MagnetFromTorrent(data []byte) (magnet, infoHash string, err error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse torrent: %w", err)
	}
	if len(mi.InfoBytes) == 0 {
		return "", "", fmt.Errorf("torrent has no info dictionary")
	}

	infoHash = mi.HashInfoBytes().HexString()
	magnet = "magnet:?xt=urn:btih:" + infoHash

	info, err := mi.UnmarshalInfo()
	if err == nil && info.Name != "" {
		magnet += "&dn=" + url.QueryEscape(info.Name)
	}
	return magnet, infoHash, nil
}
