package utils

import "errors"

const DefaultBufferSize = 1024 * 1024 * 2 // 2MB socket buffer
const LogFile = "kickstart.log"
const StagingSuffix = ".kickstart-new"

const ToolUserAgent = "kickstart/1.0"

var ErrInvalidProxy = errors.New("invalid proxy URL")
